package io

import (
	"context"
	"io"
	"os"

	"github.com/OFFIS-RIT/mt2n/pkg/loader"
)

// IOSourceLoader opens source files from the local filesystem.
type IOSourceLoader struct{}

// NewIOSourceLoader creates a new filesystem-based source loader.
func NewIOSourceLoader() *IOSourceLoader {
	return &IOSourceLoader{}
}

// Open opens the file for streaming.
func (l *IOSourceLoader) Open(ctx context.Context, file loader.SourceFile) (io.ReadCloser, error) {
	return os.Open(file.FilePath)
}
