package documents

import (
	"context"
	"errors"

	"github.com/yourorg/vision-showcase/internal/models"
)

// ErrNotFound is returned by Get when no document has the given id.
var ErrNotFound = errors.New("document not found")

// Store holds AnalysisDocuments keyed by id (the uploaded filename). The
// server only reads; Put exists for the pipeline side and the importer.
type Store interface {
	// Exists reports whether a document with id has been written.
	Exists(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (models.AnalysisDocument, error)
	// Recent returns at most limit documents, newest ProcessedTimestamp first.
	Recent(ctx context.Context, limit int) ([]models.AnalysisDocument, error)
	// Put inserts or replaces the document with the same id.
	Put(ctx context.Context, doc models.AnalysisDocument) error
	Close() error
}
