// Command importer loads analysis documents into the configured document
// store, or exports the newest ones. Sources and targets are file:// or
// s3:// URIs.
//
//	importer --in s3://js-image-landing/exports/docs.jsonl
//	importer --export file://./backup.jsonl --limit 500
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/yourorg/vision-showcase/internal/config"
	"github.com/yourorg/vision-showcase/internal/documents"
	"github.com/yourorg/vision-showcase/internal/gallery"
	"github.com/yourorg/vision-showcase/internal/iopkg"
	"github.com/yourorg/vision-showcase/internal/logger"
)

func main() {
	fs := pflag.NewFlagSet("importer", pflag.ExitOnError)
	in := fs.String("in", "", "JSON lines (or array) of documents to import")
	out := fs.String("export", "", "write the newest documents here as JSON lines")
	limit := fs.Int("limit", 1000, "documents to export")
	_ = fs.Parse(os.Args[1:])

	if (*in == "") == (*out == "") {
		fmt.Fprintln(os.Stderr, "exactly one of --in or --export is required")
		fs.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Must("info").Fatal("failed to load config", zap.Error(err))
	}
	log := logger.Must(cfg.Log.Level)
	defer log.Sync()

	if err := run(cfg, log, *in, *out, *limit); err != nil {
		log.Error("importer failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger, in, out string, limit int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()
	store, err := gallery.OpenDocuments(ctx, cfg.Documents, log, &closers)
	if err != nil {
		return fmt.Errorf("open %s document store: %w", cfg.Documents.Driver, err)
	}

	if in != "" {
		return importFrom(ctx, store, in, log)
	}
	return exportTo(ctx, store, out, limit, log)
}

func importFrom(ctx context.Context, store documents.Store, uri string, log *zap.Logger) error {
	rc, size, err := iopkg.Open(ctx, uri)
	if err != nil {
		return err
	}
	defer rc.Close()

	log.Info("importing documents", zap.String("source", uri), zap.Int64("bytes", size))
	st, err := documents.Import(ctx, store, rc, log)
	log.Info("import finished",
		zap.Int("read", st.Read),
		zap.Int("written", st.Written),
		zap.Int("skipped", st.Skipped))
	return err
}

func exportTo(ctx context.Context, store documents.Store, uri string, limit int, log *zap.Logger) error {
	w, err := iopkg.Create(ctx, uri)
	if err != nil {
		return err
	}
	n, err := documents.Export(ctx, store, w, limit)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	log.Info("export finished", zap.String("target", uri), zap.Int("documents", n))
	return nil
}
