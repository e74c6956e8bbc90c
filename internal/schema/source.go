package schema

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Source reads schema documents by slash-separated name, e.g. "xsd/dataset.xsd".
type Source interface {
	// Open returns the document's content.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// URL returns the absolute URL of name. References inside a document
	// resolve against it, and URL("") is the base every document shares.
	URL(name string) string
}

// NewSource builds the Source selected by cfg.
func NewSource(ctx context.Context, cfg config.SchemaConfig) (Source, error) {
	switch cfg.Source {
	case config.SchemaSourceS3:
		return NewS3Source(ctx, cfg.S3)
	default:
		return NewFSSource(cfg.Root)
	}
}

// FSSource reads schemas from a directory.
type FSSource struct {
	root string
}

// NewFSSource returns a Source rooted at dir. Relative roots are made absolute so
// schema URLs stay stable when the working directory changes.
func NewFSSource(dir string) (*FSSource, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving schema root %q: %w", dir, err)
	}
	return &FSSource{root: abs}, nil
}

func (s *FSSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.root, filepath.FromSlash(name)))
}

func (s *FSSource) URL(name string) string {
	return "file://" + filepath.ToSlash(s.root) + "/" + name
}

// S3Source reads schemas from an S3 (or S3 compatible) bucket.
type S3Source struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Source creates an S3 client from the default AWS credential chain.
func NewS3Source(ctx context.Context, cfg config.SchemaS3Config) (*S3Source, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return NewS3SourceWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3SourceWithClient wraps an existing client.
func NewS3SourceWithClient(client *s3.Client, bucket, prefix string) *S3Source {
	return &S3Source{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *S3Source) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *S3Source) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching s3://%s/%s: %w", s.bucket, s.key(name), err)
	}
	return out.Body, nil
}

func (s *S3Source) URL(name string) string {
	base := "s3://" + s.bucket + "/"
	if s.prefix != "" {
		base += s.prefix + "/"
	}
	return base + name
}

// readAll opens name from src and reads it fully.
func readAll(ctx context.Context, src Source, name string) ([]byte, error) {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
