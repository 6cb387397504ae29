package models

import (
	"errors"
	"time"
)

// Color is one dominant color reported by the analysis pipeline.
type Color struct {
	Red   uint8 `json:"red"`
	Green uint8 `json:"green"`
	Blue  uint8 `json:"blue"`
}

// AnalysisDocument is the record the external vision pipeline writes once an
// uploaded object has been processed. ID always equals FileName.
type AnalysisDocument struct {
	ID                 string    `json:"id"`
	FileName           string    `json:"fileName"`
	DetectedLabels     []string  `json:"detectedLabels"`
	DominantColors     []Color   `json:"dominantColors"`
	ProcessedTimestamp time.Time `json:"processedTimestamp"`
}

var (
	ErrMissingFileName = errors.New("document has no fileName")
	ErrIDMismatch      = errors.New("document id must equal fileName")
)

// Normalize fills an empty ID from FileName and replaces nil slices so the
// document always serializes with arrays.
func (d *AnalysisDocument) Normalize() error {
	if d.FileName == "" {
		return ErrMissingFileName
	}
	if d.ID == "" {
		d.ID = d.FileName
	}
	if d.ID != d.FileName {
		return ErrIDMismatch
	}
	if d.DetectedLabels == nil {
		d.DetectedLabels = []string{}
	}
	if d.DominantColors == nil {
		d.DominantColors = []Color{}
	}
	return nil
}
