package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

var ErrNoBucket = errors.New("storage bucket is not configured")

// Options selects the bucket and, for MinIO and other S3-compatible servers,
// a custom endpoint with path-style addressing.
type Options struct {
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
}

type S3Client struct {
	presign *s3.PresignClient
	bucket  string
	now     func() time.Time
}

// NewS3 loads credentials from the default AWS chain and checks that they
// resolve, so a misconfigured deployment fails at startup instead of on the
// first signing request.
func NewS3(ctx context.Context, opts Options) (*S3Client, error) {
	if opts.Bucket == "" {
		return nil, ErrNoBucket
	}
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.Credentials == nil {
		return nil, errors.New("no aws credentials provider")
	}
	if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
		return nil, fmt.Errorf("retrieve aws credentials: %w", err)
	}
	return NewS3FromConfig(cfg, opts), nil
}

// NewS3FromConfig builds a signer from an already resolved aws.Config.
func NewS3FromConfig(cfg aws.Config, opts Options) *S3Client {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})
	return &S3Client{
		presign: s3.NewPresignClient(client),
		bucket:  opts.Bucket,
		now:     time.Now,
	}
}

// PresignPut signs a PUT whose Content-Type is part of the signature, so the
// upload must carry exactly the returned Headers.
func (s *S3Client) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (SignedURL, error) {
	issued := s.now()
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	},
		s3.WithPresignExpires(ttl),
		signedAt(issued),
		s3.WithPresignClientFromClientOptions(s3.WithAPIOptions(signContentType(contentType))),
	)
	if err != nil {
		return SignedURL{}, fmt.Errorf("presign put %s: %w", key, err)
	}
	return SignedURL{
		URL:     req.URL,
		Method:  req.Method,
		Expires: issued.Add(ttl),
		Headers: replayHeaders(req.SignedHeader),
	}, nil
}

func (s *S3Client) PresignGet(ctx context.Context, key string, ttl time.Duration) (SignedURL, error) {
	issued := s.now()
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl), signedAt(issued))
	if err != nil {
		return SignedURL{}, fmt.Errorf("presign get %s: %w", key, err)
	}
	return SignedURL{
		URL:     req.URL,
		Method:  req.Method,
		Expires: issued.Add(ttl),
	}, nil
}

// The presign stack drops Content-Type from body-less requests during Build;
// this puts it back ahead of signing.
func signContentType(contentType string) func(*middleware.Stack) error {
	return func(stack *middleware.Stack) error {
		return stack.Finalize.Add(middleware.FinalizeMiddlewareFunc("SignContentType",
			func(ctx context.Context, in middleware.FinalizeInput, next middleware.FinalizeHandler) (
				middleware.FinalizeOutput, middleware.Metadata, error,
			) {
				if req, ok := in.Request.(*smithyhttp.Request); ok {
					req.Header.Set("Content-Type", contentType)
				}
				return next.HandleFinalize(ctx, in)
			}), middleware.Before)
	}
}

// signedAt pins X-Amz-Date to the instant Expires is derived from.
func signedAt(t time.Time) func(*s3.PresignOptions) {
	return func(o *s3.PresignOptions) {
		o.Presigner = clockedPresigner{HTTPPresignerV4: o.Presigner, at: t}
	}
}

type clockedPresigner struct {
	s3.HTTPPresignerV4
	at time.Time
}

func (p clockedPresigner) PresignHTTP(
	ctx context.Context, creds aws.Credentials, r *http.Request,
	payloadHash, service, region string, _ time.Time,
	optFns ...func(*v4.SignerOptions),
) (string, http.Header, error) {
	return p.HTTPPresignerV4.PresignHTTP(ctx, creds, r, payloadHash, service, region, p.at, optFns...)
}

// replayHeaders keeps the signed headers a client has to send itself; Host is
// derived from the URL by every HTTP client.
func replayHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if http.CanonicalHeaderKey(k) == "Host" || len(v) == 0 {
			continue
		}
		out[http.CanonicalHeaderKey(k)] = v[0]
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
