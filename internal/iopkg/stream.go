// Package iopkg opens and creates byte streams addressed by file:// or s3://
// URIs. A bare path is treated as a local file.
package iopkg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3iface is the subset of the s3 client used here.
type s3iface interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// newS3Client is swapped in tests.
var newS3Client = func(ctx context.Context) (s3iface, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg), nil
}

type location struct {
	scheme string
	bucket string
	key    string
	path   string
}

func parse(uri string) (location, error) {
	if !strings.Contains(uri, "://") {
		return location{scheme: "file", path: uri}, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return location{}, err
	}
	switch u.Scheme {
	case "file":
		return location{scheme: "file", path: strings.TrimPrefix(uri, "file://")}, nil
	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return location{}, fmt.Errorf("s3 uri needs bucket and key: %q", uri)
		}
		return location{scheme: "s3", bucket: u.Host, key: key}, nil
	default:
		return location{}, fmt.Errorf("unsupported scheme: %q", u.Scheme)
	}
}

// Open returns a reader and, when known, the size of the object at uri.
func Open(ctx context.Context, uri string) (io.ReadCloser, int64, error) {
	loc, err := parse(uri)
	if err != nil {
		return nil, 0, err
	}
	if loc.scheme == "file" {
		f, err := os.Open(loc.path)
		if err != nil {
			return nil, 0, err
		}
		var size int64
		if st, err := f.Stat(); err == nil {
			size = st.Size()
		}
		return f, size, nil
	}

	cl, err := newS3Client(ctx)
	if err != nil {
		return nil, 0, err
	}
	resp, err := cl.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.bucket),
		Key:    aws.String(loc.key),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("get s3://%s/%s: %w", loc.bucket, loc.key, err)
	}
	return resp.Body, aws.ToInt64(resp.ContentLength), nil
}

// Create returns a writer for uri. S3 objects are buffered in memory and
// uploaded on Close.
func Create(ctx context.Context, uri string) (io.WriteCloser, error) {
	loc, err := parse(uri)
	if err != nil {
		return nil, err
	}
	if loc.scheme == "file" {
		if err := os.MkdirAll(filepath.Dir(loc.path), 0o755); err != nil {
			return nil, err
		}
		return os.Create(loc.path)
	}
	return &s3Writer{ctx: ctx, loc: loc}, nil
}

type s3Writer struct {
	ctx  context.Context
	loc  location
	buf  bytes.Buffer
	done bool
}

func (w *s3Writer) Write(p []byte) (int, error) {
	if w.done {
		return 0, os.ErrClosed
	}
	return w.buf.Write(p)
}

func (w *s3Writer) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	cl, err := newS3Client(w.ctx)
	if err != nil {
		return err
	}
	_, err = cl.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.loc.bucket),
		Key:         aws.String(w.loc.key),
		Body:        bytes.NewReader(w.buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", w.loc.bucket, w.loc.key, err)
	}
	return nil
}
