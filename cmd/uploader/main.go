package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/yourorg/vision-showcase/internal/client"
	"github.com/yourorg/vision-showcase/internal/logger"
	"github.com/yourorg/vision-showcase/internal/orchestrator"
	"github.com/yourorg/vision-showcase/internal/types"
)

func main() {
	fs := pflag.NewFlagSet("uploader", pflag.ExitOnError)
	fs.String("server", "http://localhost:8080", "API base URL")
	fs.String("file", "", "image to upload and wait for")
	fs.Bool("list", false, "print the gallery; after an upload it is printed once analysis completes")
	fs.Duration("poll-interval", orchestrator.DefaultPollInterval, "delay between status checks")
	fs.Int("max-attempts", orchestrator.DefaultMaxAttempts, "status checks before giving up")
	fs.String("log-level", "warn", "debug, info, warn or error")
	_ = fs.Parse(os.Args[1:])

	v := viper.New()
	v.SetEnvPrefix("UPLOADER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(fs)

	log := logger.Must(v.GetString("log-level"))
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(v.GetString("server"))
	file, list := v.GetString("file"), v.GetBool("list")

	switch {
	case file != "":
		if err := upload(ctx, c, log, file, list, orchestrator.Options{
			PollInterval: v.GetDuration("poll-interval"),
			MaxAttempts:  v.GetInt("max-attempts"),
		}); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case list:
		if err := printGallery(ctx, c); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	default:
		fs.Usage()
		os.Exit(2)
	}
}

func upload(ctx context.Context, c *client.Client, log *zap.Logger, path string, list bool, opts orchestrator.Options) error {
	f, err := orchestrator.LocalFile(path)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}
	opts.Logger = log
	opts.OnChange = func(s orchestrator.Snapshot) {
		if s.Message != "" {
			fmt.Printf("[%s] %s\n", s.State, s.Message)
		}
		if s.State == orchestrator.StateError {
			finish(s.Err)
		}
	}
	opts.OnSuccess = func(string) {
		if list {
			if err := printGallery(ctx, c); err != nil {
				log.Warn("gallery refresh failed", zap.Error(err))
			}
		}
		finish(nil)
	}

	o := orchestrator.New(c, opts)
	defer o.Close()

	if err := o.Start(ctx, f); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		o.Cancel()
		return errors.New("interrupted")
	}
}

func printGallery(ctx context.Context, c *client.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	entries, err := c.Images(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("gallery is empty")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %s  labels=%s colors=%s\n  %s\n",
			e.ProcessedTimestamp.Format(time.RFC3339), e.FileName,
			strings.Join(e.DetectedLabels, ","), colors(e), e.ImageURL)
	}
	return nil
}

func colors(e types.ImageEntry) string {
	parts := make([]string, 0, len(e.DominantColors))
	for _, c := range e.DominantColors {
		parts = append(parts, fmt.Sprintf("#%02x%02x%02x", c.Red, c.Green, c.Blue))
	}
	return strings.Join(parts, ",")
}
