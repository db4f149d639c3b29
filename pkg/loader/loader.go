package loader

import (
	"context"
	"io"
	"strings"
)

// SourceFile is one triple statement file taking part in an ingestion run.
// Its content is streamed through the associated SourceLoader.
type SourceFile struct {
	ID       string
	FilePath string
	Loader   SourceLoader
}

// NewSourceFileParams defines the input parameters for creating a new
// SourceFile.
type NewSourceFileParams struct {
	ID       string
	FilePath string
	Loader   SourceLoader
}

// NewSourceFile creates a SourceFile. When no ID is given the file path is
// used.
func NewSourceFile(params NewSourceFileParams) SourceFile {
	id := params.ID
	if id == "" {
		id = params.FilePath
	}
	return SourceFile{
		ID:       id,
		FilePath: params.FilePath,
		Loader:   params.Loader,
	}
}

// Open returns a stream over the file content. The caller must close it.
//
// Example:
//
//	r, err := file.Open(ctx)
//	if err != nil {
//		return err
//	}
//	defer r.Close()
func (f SourceFile) Open(ctx context.Context) (io.ReadCloser, error) {
	return f.Loader.Open(ctx, f)
}

// SourceLoader defines how the content of a SourceFile is opened.
// Implementations may read from disk, object storage, or any other backend.
type SourceLoader interface {
	Open(ctx context.Context, file SourceFile) (io.ReadCloser, error)
}

const S3Scheme = "s3://"

// IsS3Path reports whether path addresses an object in S3.
func IsS3Path(path string) bool {
	return strings.HasPrefix(path, S3Scheme)
}

// SplitS3Path splits "s3://bucket/key" into bucket and key. A path without a
// bucket segment returns ok == false.
func SplitS3Path(path string) (bucket, key string, ok bool) {
	if !IsS3Path(path) {
		return "", "", false
	}
	rest := strings.TrimPrefix(path, S3Scheme)
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
