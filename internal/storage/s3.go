// Package storage uploads run outputs to S3 compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/OFFIS-RIT/mt2n/pkg/export"
	"github.com/OFFIS-RIT/mt2n/pkg/loader"
	"github.com/OFFIS-RIT/mt2n/pkg/logger"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3ClientParams holds the connection settings for S3.
// Endpoint is only needed for S3 compatible stores such as MinIO, in which
// case path style addressing is used.
type NewS3ClientParams struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

func NewS3Client(ctx context.Context, params NewS3ClientParams) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(params.Region),
	}
	if params.Endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(params.Endpoint))
	}
	if params.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			params.AccessKey,
			params.SecretKey,
			"",
		)))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = params.Endpoint != ""
	})
	return client, nil
}

// Destination sends "s3://bucket/key" outputs to S3 and every other path to
// the local filesystem.
type Destination struct {
	client objectPutter
	local  export.Destination
}

// NewDestination creates a Destination. client may be nil when no output is
// stored in S3.
func NewDestination(client *s3.Client) *Destination {
	d := &Destination{local: export.FileDestination{}}
	if client != nil {
		d.client = client
	}
	return d
}

func (d *Destination) Create(ctx context.Context, p string) (io.WriteCloser, error) {
	if !loader.IsS3Path(p) {
		return d.local.Create(ctx, p)
	}
	bucket, key, ok := loader.SplitS3Path(p)
	if !ok {
		return nil, fmt.Errorf("malformed s3 path %q", p)
	}
	if d.client == nil {
		return nil, errors.New("no s3 client configured")
	}
	return &objectWriter{ctx: ctx, client: d.client, bucket: bucket, key: key}, nil
}

// objectWriter buffers the output and uploads it in one PutObject on Close.
// An aborted writer uploads nothing.
type objectWriter struct {
	ctx    context.Context
	client objectPutter
	bucket string
	key    string
	buf    bytes.Buffer
	closed bool
}

func (w *objectWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("write to closed object")
	}
	return w.buf.Write(p)
}

func (w *objectWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	input := &s3.PutObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(w.key),
		Body:   bytes.NewReader(w.buf.Bytes()),
	}
	if mimeType := mime.TypeByExtension(path.Ext(w.key)); mimeType != "" {
		input.ContentType = aws.String(mimeType)
	}
	if _, err := w.client.PutObject(w.ctx, input); err != nil {
		return fmt.Errorf("failed to upload file to S3: %w", err)
	}

	logger.Debug("[Export] Uploaded", "bucket", w.bucket, "key", w.key, "bytes", w.buf.Len())
	return nil
}

// Abort drops the buffered content without uploading it.
func (w *objectWriter) Abort() error {
	w.closed = true
	w.buf.Reset()
	return nil
}
