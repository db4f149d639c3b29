// Package pipeline runs one complete ingestion: it reads the run
// configuration, streams every listed source through the graph builder,
// optionally annotates the graph with an ontology and hands the finished
// graph to the exporters and the database sink.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/OFFIS-RIT/mt2n/internal/config"
	"github.com/OFFIS-RIT/mt2n/internal/storage"
	"github.com/OFFIS-RIT/mt2n/internal/util"
	"github.com/OFFIS-RIT/mt2n/pkg/common"
	"github.com/OFFIS-RIT/mt2n/pkg/export"
	"github.com/OFFIS-RIT/mt2n/pkg/graph"
	"github.com/OFFIS-RIT/mt2n/pkg/loader"
	ioloader "github.com/OFFIS-RIT/mt2n/pkg/loader/io"
	s3loader "github.com/OFFIS-RIT/mt2n/pkg/loader/s3"
	"github.com/OFFIS-RIT/mt2n/pkg/logger"
	"github.com/OFFIS-RIT/mt2n/pkg/ontology"
	"github.com/OFFIS-RIT/mt2n/pkg/store"
)

const (
	storeRetries   = 3
	storeRetryWait = 2 * time.Second
)

// Options carries the collaborators of a run. Every field is optional.
type Options struct {
	// RunID overrides the generated run id.
	RunID string
	// S3 is used for s3:// paths. When nil and a path needs it, a client is
	// created from the configuration.
	S3 *awss3.Client
	// Storage receives the finished graph after export.
	Storage store.GraphStorage
	// Destination overrides where outputs are written.
	Destination export.Destination
}

// Result describes a finished run.
type Result struct {
	Graph    *common.Graph
	Sources  []string
	Stats    graph.Stats
	Annotate *graph.AnnotateStats
	Duration time.Duration
}

type runner struct {
	cfg  *config.Config
	opts Options
	io   loader.SourceLoader
	s3   loader.SourceLoader
}

func (r *runner) s3Client(ctx context.Context) (*awss3.Client, error) {
	if r.opts.S3 != nil {
		return r.opts.S3, nil
	}
	client, err := storage.NewS3Client(ctx, storage.NewS3ClientParams{
		Region:    r.cfg.S3.Region,
		Endpoint:  r.cfg.S3.Endpoint,
		AccessKey: r.cfg.S3.AccessKey,
		SecretKey: r.cfg.S3.SecretKey,
	})
	if err != nil {
		return nil, err
	}
	r.opts.S3 = client
	return client, nil
}

func (r *runner) sourceFile(ctx context.Context, path string) (loader.SourceFile, error) {
	if !loader.IsS3Path(path) {
		return loader.NewSourceFile(loader.NewSourceFileParams{FilePath: path, Loader: r.io}), nil
	}
	if r.s3 == nil {
		client, err := r.s3Client(ctx)
		if err != nil {
			return loader.SourceFile{}, err
		}
		r.s3 = s3loader.NewS3SourceLoaderWithClient("", client)
	}
	return loader.NewSourceFile(loader.NewSourceFileParams{FilePath: path, Loader: r.s3}), nil
}

func (r *runner) read(ctx context.Context, path string, fn func(io.Reader) error) error {
	file, err := r.sourceFile(ctx, path)
	if err != nil {
		return err
	}
	rc, err := file.Open(ctx)
	if err != nil {
		return &graph.SourceError{File: path, Err: err}
	}
	defer rc.Close()
	return fn(rc)
}

// Run executes the configured ingestion. On failure nothing is exported or
// stored.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Result, error) {
	start := time.Now()
	r := &runner{cfg: cfg, opts: opts, io: ioloader.NewIOSourceLoader()}

	var sources []string
	err := r.read(ctx, cfg.SourcesPath, func(rd io.Reader) error {
		var err error
		sources, err = config.ReadSourceList(rd, cfg.Dir)
		return err
	})
	if err != nil {
		return nil, err
	}

	identifiers := map[string]string{}
	if cfg.IdentifiersPath != "" {
		err := r.read(ctx, cfg.IdentifiersPath, func(rd io.Reader) error {
			var err error
			identifiers, err = config.ReadIdentifiers(rd)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	b, err := graph.NewBuilder(graph.NewBuilderParams{
		Identifiers:  identifiers,
		MaxLineBytes: cfg.MaxLineBytes,
	})
	if err != nil {
		return nil, err
	}

	files := make([]loader.SourceFile, 0, len(sources))
	for _, path := range sources {
		file, err := r.sourceFile(ctx, path)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	if err := b.Ingest(ctx, files); err != nil {
		return nil, err
	}

	result := &Result{Sources: sources}
	if cfg.OntologyPath != "" {
		var onto *ontology.Ontology
		err := r.read(ctx, cfg.OntologyPath, func(rd io.Reader) error {
			var err error
			onto, err = ontology.Load(rd)
			return err
		})
		if err != nil {
			return nil, err
		}
		stats, err := b.Annotate(onto, cfg.AccessionProperty)
		if err != nil {
			return nil, err
		}
		result.Annotate = &stats
	}

	runID := opts.RunID
	if runID == "" {
		runID, err = gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("failed to generate run id: %w", err)
		}
	}
	g, err := b.Finalize(runID)
	if err != nil {
		return nil, err
	}
	result.Graph = g
	result.Stats = b.Stats()

	if !cfg.Outputs.Empty() {
		dest := opts.Destination
		if dest == nil {
			var client *awss3.Client
			if cfg.NeedsS3(nil) {
				if client, err = r.s3Client(ctx); err != nil {
					return nil, err
				}
			}
			dest = storage.NewDestination(client)
		}
		if err := export.WriteAll(ctx, g, cfg.Outputs, dest); err != nil {
			return nil, err
		}
	}

	if opts.Storage != nil {
		err := util.RetryErrWithContext(ctx, storeRetries, storeRetryWait, func(ctx context.Context) error {
			return opts.Storage.SaveGraph(ctx, g)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to store graph %s: %w", runID, err)
		}
	}

	result.Duration = time.Since(start)
	logger.Info(
		"[Ingest] Run finished",
		"run_id", runID,
		"files", result.Stats.Files,
		"vertices", len(g.Vertices),
		"edges", len(g.Edges),
		"merged", result.Stats.NodesMerged,
		"duration", FormatDuration(result.Duration),
	)
	return result, nil
}

// FormatDuration renders d as hh:mm:ss.
func FormatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
