package gallery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/vision-showcase/internal/documents"
	"github.com/yourorg/vision-showcase/internal/metrics"
	"github.com/yourorg/vision-showcase/internal/normalize"
	"github.com/yourorg/vision-showcase/internal/storage"
	"github.com/yourorg/vision-showcase/internal/types"
)

// Config tunes the three operations. Limit is the single knob for the number
// of images the gallery returns.
type Config struct {
	Limit        int
	UploadTTL    time.Duration
	ReadTTL      time.Duration
	AllowedTypes []string
}

func DefaultConfig() Config {
	return Config{
		Limit:        6,
		UploadTTL:    15 * time.Minute,
		ReadTTL:      time.Hour,
		AllowedTypes: []string{"image/jpeg", "image/png"},
	}
}

// Service issues upload URLs, answers status checks and lists analyzed
// images. It is stateless apart from the shared clients and safe for
// concurrent use.
type Service struct {
	signer  storage.Signer
	docs    documents.Store
	cfg     Config
	log     *zap.Logger
	initErr error
}

func New(signer storage.Signer, docs documents.Store, cfg Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{signer: signer, docs: docs, cfg: cfg, log: log}
}

// NewUnavailable returns a Service whose every call fails fast with
// ErrUnavailable carrying initErr.
func NewUnavailable(initErr error, log *zap.Logger) *Service {
	if initErr == nil {
		initErr = errors.New("unknown initialization failure")
	}
	s := New(nil, nil, Config{}, log)
	s.initErr = initErr
	return s
}

// Ready reports the startup failure, if any.
func (s *Service) Ready() error {
	if s.initErr != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, s.initErr)
	}
	return nil
}

// Limit is the number of entries Recent returns at most.
func (s *Service) Limit() int { return s.cfg.Limit }

// IssueUploadURL returns a write URL for exactly filename and contentType.
// Nothing is created in the bucket until the client performs the PUT.
func (s *Service) IssueUploadURL(ctx context.Context, filename, contentType string) (storage.SignedURL, error) {
	if err := s.Ready(); err != nil {
		return storage.SignedURL{}, err
	}
	if filename == "" || contentType == "" {
		return storage.SignedURL{}, invalid(errors.New("filename and contentType are required"))
	}
	if err := normalize.Filename(filename); err != nil {
		return storage.SignedURL{}, invalid(err)
	}
	ct, err := normalize.ContentType(contentType, s.cfg.AllowedTypes)
	if err != nil {
		return storage.SignedURL{}, invalid(fmt.Errorf("%w: %q", err, contentType))
	}

	signed, err := s.signer.PresignPut(ctx, filename, ct, s.cfg.UploadTTL)
	if err != nil {
		return storage.SignedURL{}, serviceFailure("sign upload url", err)
	}
	metrics.SignedURLs.WithLabelValues("write").Inc()
	s.log.Info("upload url issued",
		zap.String("filename", filename),
		zap.String("content_type", ct),
		zap.Time("expires", signed.Expires))
	return signed, nil
}

// Status reports processed once the pipeline has written a document for
// filename. Document content is never inspected.
func (s *Service) Status(ctx context.Context, filename string) (types.Status, error) {
	if err := s.Ready(); err != nil {
		return "", err
	}
	if filename == "" {
		return "", invalid(errors.New("filename is required"))
	}
	if err := normalize.Filename(filename); err != nil {
		return "", invalid(err)
	}

	ok, err := s.docs.Exists(ctx, filename)
	if err != nil {
		metrics.StatusChecks.WithLabelValues("error").Inc()
		return "", serviceFailure("check status", err)
	}
	status := types.StatusPending
	if ok {
		status = types.StatusProcessed
	}
	metrics.StatusChecks.WithLabelValues(string(status)).Inc()
	return status, nil
}

// Recent lists the newest analyzed images, each with a read URL. If any URL
// cannot be signed the whole call fails; no partial list is returned.
func (s *Service) Recent(ctx context.Context) ([]types.ImageEntry, error) {
	entries, err := s.recent(ctx)
	if err != nil {
		metrics.GalleryRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.GalleryRequests.WithLabelValues("ok").Inc()
	return entries, nil
}

func (s *Service) recent(ctx context.Context) ([]types.ImageEntry, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}
	docs, err := s.docs.Recent(ctx, s.cfg.Limit)
	if err != nil {
		return nil, serviceFailure("query documents", err)
	}
	if len(docs) > s.cfg.Limit {
		docs = docs[:s.cfg.Limit]
	}

	entries := make([]types.ImageEntry, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range docs {
		i, d := i, d
		g.Go(func() error {
			signed, err := s.signer.PresignGet(gctx, d.FileName, s.cfg.ReadTTL)
			if err != nil {
				return fmt.Errorf("sign %s: %w", d.FileName, err)
			}
			entries[i] = types.ImageEntry{AnalysisDocument: d, ImageURL: signed.URL}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, serviceFailure("resolve image urls", err)
	}
	metrics.SignedURLs.WithLabelValues("read").Add(float64(len(entries)))
	return entries, nil
}
