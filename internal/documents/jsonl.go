package documents

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode"

	"go.uber.org/zap"

	"github.com/yourorg/vision-showcase/internal/models"
	"github.com/yourorg/vision-showcase/internal/normalize"
)

type ImportStats struct {
	Read    int
	Written int
	Skipped int
}

// Import reads documents from r and writes each one to s. The input is
// either newline-delimited JSON or a single JSON array. Documents with an
// unusable fileName are skipped; malformed JSON stops the import, as does a
// write that cannot be read back.
func Import(ctx context.Context, s Store, r io.Reader, log *zap.Logger) (ImportStats, error) {
	if log == nil {
		log = zap.NewNop()
	}
	br := bufio.NewReader(r)
	dec := json.NewDecoder(br)

	array, err := startsWithArray(br)
	if err != nil {
		return ImportStats{}, err
	}
	if array {
		if _, err := dec.Token(); err != nil {
			return ImportStats{}, fmt.Errorf("read array start: %w", err)
		}
	}

	var st ImportStats
	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		if array && !dec.More() {
			break
		}
		var d models.AnalysisDocument
		if err := dec.Decode(&d); err != nil {
			if errors.Is(err, io.EOF) && !array {
				break
			}
			return st, fmt.Errorf("document %d: %w", st.Read+1, err)
		}
		st.Read++

		if err := validate(&d); err != nil {
			st.Skipped++
			log.Warn("skipping document", zap.Int("index", st.Read), zap.String("file_name", d.FileName), zap.Error(err))
			continue
		}
		if err := s.Put(ctx, d); err != nil {
			return st, fmt.Errorf("put %q: %w", d.FileName, err)
		}
		if err := readBack(ctx, s, d); err != nil {
			return st, err
		}
		st.Written++
	}
	return st, nil
}

// ErrNotPersisted means a Put returned without error but the document could
// not be read back under its id.
var ErrNotPersisted = errors.New("document not persisted")

func readBack(ctx context.Context, s Store, want models.AnalysisDocument) error {
	got, err := s.Get(ctx, want.ID)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %q", ErrNotPersisted, want.ID)
	}
	if err != nil {
		return fmt.Errorf("read back %q: %w", want.ID, err)
	}
	if got.FileName != want.FileName {
		return fmt.Errorf("%w: %q read back as %q", ErrNotPersisted, want.ID, got.FileName)
	}
	return nil
}

func validate(d *models.AnalysisDocument) error {
	if err := d.Normalize(); err != nil {
		return err
	}
	return normalize.Filename(d.FileName)
}

func startsWithArray(br *bufio.Reader) (bool, error) {
	for {
		r, _, err := br.ReadRune()
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if unicode.IsSpace(r) || r == '\uFEFF' {
			continue
		}
		return r == '[', br.UnreadRune()
	}
}

// Export writes the newest limit documents to w as newline-delimited JSON.
func Export(ctx context.Context, s Store, w io.Writer, limit int) (int, error) {
	docs, err := s.Recent(ctx, limit)
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(w)
	for i, d := range docs {
		if err := enc.Encode(d); err != nil {
			return i, err
		}
	}
	return len(docs), nil
}
