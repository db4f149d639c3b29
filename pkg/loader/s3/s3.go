package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/OFFIS-RIT/mt2n/pkg/loader"
)

type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3SourceLoader is a SourceLoader that streams source files from an S3
// bucket using the AWS SDK v2 for Go.
//
// File paths may be full "s3://bucket/key" URLs or plain keys inside the
// loader's default bucket.
type S3SourceLoader struct {
	bucket string
	client objectGetter
}

// NewS3SourceLoaderWithClient creates a new S3SourceLoader using an existing
// s3.Client.
func NewS3SourceLoaderWithClient(bucket string, client *s3.Client) *S3SourceLoader {
	return &S3SourceLoader{
		bucket: bucket,
		client: client,
	}
}

// NewS3SourceLoaderParams defines the configuration parameters for creating
// a new S3SourceLoader.
//
// Bucket is the default bucket for paths that carry no bucket.
// Endpoint allows overriding the S3 endpoint (useful for S3-compatible
// storage like MinIO).
type NewS3SourceLoaderParams struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3SourceLoader creates a loader with static credentials.
//
// Example:
//
//	l, err := s3.NewS3SourceLoader(ctx, s3.NewS3SourceLoaderParams{
//		Region:    "eu-central-1",
//		AccessKey: os.Getenv("AWS_ACCESS_KEY"),
//		SecretKey: os.Getenv("AWS_SECRET_KEY"),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	file := loader.SourceFile{ID: "1", FilePath: "s3://data/rice.ttl", Loader: l}
//	r, err := file.Open(ctx)
func NewS3SourceLoader(ctx context.Context, params NewS3SourceLoaderParams) (*S3SourceLoader, error) {
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
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = params.Endpoint != ""
	})

	return &S3SourceLoader{
		bucket: params.Bucket,
		client: client,
	}, nil
}

func (l *S3SourceLoader) location(path string) (string, string, error) {
	if bucket, key, ok := loader.SplitS3Path(path); ok {
		return bucket, key, nil
	}
	if loader.IsS3Path(path) {
		return "", "", fmt.Errorf("malformed s3 path %q", path)
	}
	if l.bucket == "" {
		return "", "", fmt.Errorf("no bucket for key %q", path)
	}
	return l.bucket, path, nil
}

// Open streams the object body. The body is closed by the caller.
func (l *S3SourceLoader) Open(ctx context.Context, file loader.SourceFile) (io.ReadCloser, error) {
	bucket, key, err := l.location(file.FilePath)
	if err != nil {
		return nil, err
	}

	out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s from S3: %w", file.FilePath, err)
	}
	return out.Body, nil
}
