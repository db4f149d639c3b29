// Package export writes a finished graph in the formats consumed downstream:
// the JSON graph document, Gephi node and edge tables, the type code
// mappings and a plain text summary.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/OFFIS-RIT/mt2n/pkg/common"
	"github.com/OFFIS-RIT/mt2n/pkg/logger"
)

// Destination creates the writer for one output path. The returned writer is
// committed on Close, so Close errors must be checked.
type Destination interface {
	Create(ctx context.Context, path string) (io.WriteCloser, error)
}

// Aborter is implemented by writers that can discard their output. A failed
// export aborts them instead of closing.
type Aborter interface {
	Abort() error
}

// FileDestination writes outputs to the local filesystem, creating missing
// parent directories. Content goes to a temporary file in the target
// directory and is renamed into place on Close.
type FileDestination struct{}

func (FileDestination) Create(ctx context.Context, path string) (io.WriteCloser, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, err
	}
	// CreateTemp uses 0600
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, err
	}
	return &atomicFile{File: tmp, path: path}, nil
}

type atomicFile struct {
	*os.File
	path string
	done bool
}

func (f *atomicFile) Close() error {
	if f.done {
		return nil
	}
	f.done = true
	if err := f.File.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	if err := os.Rename(f.Name(), f.path); err != nil {
		os.Remove(f.Name())
		return err
	}
	return nil
}

func (f *atomicFile) Abort() error {
	if f.done {
		return nil
	}
	f.done = true
	f.File.Close()
	return os.Remove(f.Name())
}

// Targets names the output paths of one run. Empty paths are skipped.
// CSVNodes and CSVEdges are written together and must both be set or both be
// empty.
type Targets struct {
	JSON              string
	CSVNodes          string
	CSVEdges          string
	Entities          string
	Relationships     string
	Summary           string
	IncludeProperties bool
}

func (t Targets) Empty() bool {
	return t.JSON == "" && t.CSVNodes == "" && t.CSVEdges == "" &&
		t.Entities == "" && t.Relationships == "" && t.Summary == ""
}

// staging tracks the writers opened by one WriteAll call. Nothing is
// committed until every target has been written.
type staging struct {
	dest    Destination
	mu      sync.Mutex
	writers []stagedWriter
}

type stagedWriter struct {
	path string
	w    io.WriteCloser
}

func (s *staging) open(ctx context.Context, path string) (io.Writer, error) {
	w, err := s.dest.Create(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	s.mu.Lock()
	s.writers = append(s.writers, stagedWriter{path: path, w: w})
	s.mu.Unlock()
	return w, nil
}

func (s *staging) write(ctx context.Context, path string, fn func(io.Writer) error) error {
	w, err := s.open(ctx, path)
	if err != nil {
		return err
	}
	if err := fn(w); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// commit closes every writer in order. After the first failure the
// remaining writers are discarded.
func (s *staging) commit() error {
	for i, sw := range s.writers {
		if err := sw.w.Close(); err != nil {
			s.discard(s.writers[i+1:])
			return fmt.Errorf("failed to close %s: %w", sw.path, err)
		}
	}
	return nil
}

func (s *staging) discard(writers []stagedWriter) {
	for _, sw := range writers {
		a, ok := sw.w.(Aborter)
		if !ok {
			sw.w.Close()
			continue
		}
		if err := a.Abort(); err != nil {
			logger.Warn("[Export] Failed to discard output", "path", sw.path, "err", err)
		}
	}
}

// WriteAll writes every configured target in parallel. The graph is only
// read, so it must not be modified until WriteAll returns. Outputs are only
// committed once all targets were written; on failure they are discarded.
func WriteAll(ctx context.Context, g *common.Graph, targets Targets, dest Destination) error {
	if (targets.CSVNodes == "") != (targets.CSVEdges == "") {
		return fmt.Errorf("gephi export needs both a node and an edge path")
	}

	s := &staging{dest: dest}
	eg, ectx := errgroup.WithContext(ctx)

	if targets.JSON != "" {
		eg.Go(func() error {
			return s.write(ectx, targets.JSON, func(w io.Writer) error {
				return WriteJSON(w, g)
			})
		})
	}
	if targets.CSVNodes != "" {
		eg.Go(func() error {
			nodes, err := s.open(ectx, targets.CSVNodes)
			if err != nil {
				return err
			}
			edges, err := s.open(ectx, targets.CSVEdges)
			if err != nil {
				return err
			}
			if err := WriteGephi(nodes, edges, g, targets.IncludeProperties); err != nil {
				return fmt.Errorf("failed to write %s: %w", targets.CSVNodes, err)
			}
			return nil
		})
	}
	if targets.Entities != "" {
		eg.Go(func() error {
			return s.write(ectx, targets.Entities, func(w io.Writer) error {
				return WriteMapping(w, g.EntityTypes)
			})
		})
	}
	if targets.Relationships != "" {
		eg.Go(func() error {
			return s.write(ectx, targets.Relationships, func(w io.Writer) error {
				return WriteMapping(w, g.RelationshipTypes)
			})
		})
	}
	if targets.Summary != "" {
		eg.Go(func() error {
			return s.write(ectx, targets.Summary, func(w io.Writer) error {
				return WriteSummary(w, g)
			})
		})
	}

	if err := eg.Wait(); err != nil {
		s.discard(s.writers)
		return err
	}
	if err := s.commit(); err != nil {
		return err
	}

	logger.Info("[Export] Graph written", "run_id", g.RunID, "vertices", len(g.Vertices), "edges", len(g.Edges))
	return nil
}
