package pipeline

import (
	"context"
	"fmt"
	"io"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/OFFIS-RIT/mt2n/internal/config"
	"github.com/OFFIS-RIT/mt2n/pkg/common"
	"github.com/OFFIS-RIT/mt2n/pkg/export"
	"github.com/OFFIS-RIT/mt2n/pkg/graph"
	ioloader "github.com/OFFIS-RIT/mt2n/pkg/loader/io"
	"github.com/OFFIS-RIT/mt2n/pkg/logger"
)

// MergeParams describes a merge of previously exported JSON graphs.
//
// Inputs are replayed in order, so node ids of the first input are kept and
// later inputs are appended. Identifiers decides which nodes of different
// inputs denote the same entity.
type MergeParams struct {
	Inputs      []string
	Identifiers map[string]string
	RunID       string
	S3          *awss3.Client
}

// Merge combines independently built graphs into one.
func Merge(ctx context.Context, params MergeParams) (*common.Graph, error) {
	if len(params.Inputs) == 0 {
		return nil, &graph.ConfigurationError{Key: "inputs", Reason: "nothing to merge"}
	}
	r := &runner{
		cfg:  &config.Config{},
		opts: Options{S3: params.S3},
		io:   ioloader.NewIOSourceLoader(),
	}

	b, err := graph.NewBuilder(graph.NewBuilderParams{Identifiers: params.Identifiers})
	if err != nil {
		return nil, err
	}

	for _, path := range params.Inputs {
		var g *common.Graph
		err := r.read(ctx, path, func(rd io.Reader) error {
			var err error
			g, err = export.ReadJSON(rd)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := b.Replay(g); err != nil {
			return nil, err
		}
	}

	runID := params.RunID
	if runID == "" {
		runID, err = gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("failed to generate run id: %w", err)
		}
	}
	merged, err := b.Finalize(runID)
	if err != nil {
		return nil, err
	}

	stats := b.Stats()
	logger.Info("[Ingest] Graphs merged", "inputs", len(params.Inputs), "vertices", len(merged.Vertices), "edges", len(merged.Edges), "merged", stats.NodesMerged)
	return merged, nil
}
