package graph

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/OFFIS-RIT/mt2n/pkg/common"
	"github.com/OFFIS-RIT/mt2n/pkg/loader"
	"github.com/OFFIS-RIT/mt2n/pkg/logger"
)

// ErrSealed is returned when input is offered to a finalized builder.
var ErrSealed = errors.New("graph builder is sealed")

// Stats counts what one builder has processed so far.
type Stats struct {
	Files          int
	Lines          int
	Blocks         int
	NodesCreated   int
	NodesMerged    int
	EdgesAdded     int
	EdgesDuplicate int
}

// Builder owns the type tables, node store and edge store of one ingestion
// run. Sources are processed strictly in the order they are offered and all
// of them share the same state, so identifier-based merging works across
// files.
//
// A Builder is not safe for concurrent use. After any failure it refuses
// further input and Finalize returns the failure.
//
// A Builder should be created using NewBuilder.
type Builder struct {
	types    *TypeInterner
	resolver *IdentityResolver
	nodes    *NodeStore
	edges    *EdgeStore

	maxLineBytes int
	replays      int
	stats        Stats
	err          error
	sealed       bool
}

// NewBuilderParams defines the configuration parameters for creating a new
// Builder.
//
// Identifiers maps an entity type name to the single property whose value
// identifies an entity of that type. Types missing from the map never merge.
// MaxLineBytes bounds the length of one statement line; zero selects
// DefaultMaxLineBytes.
type NewBuilderParams struct {
	Identifiers  map[string]string
	MaxLineBytes int
}

// NewBuilder creates an empty Builder.
//
// Example:
//
//	b, err := graph.NewBuilder(graph.NewBuilderParams{
//		Identifiers: map[string]string{"Gene": "RAP_ID"},
//	})
//	if err != nil {
//		return err
//	}
//	if err := b.Ingest(ctx, files); err != nil {
//		return err
//	}
//	g, err := b.Finalize(runID)
func NewBuilder(params NewBuilderParams) (*Builder, error) {
	for entityType, prop := range params.Identifiers {
		if entityType == "" {
			return nil, &ConfigurationError{Key: "identifiers", Reason: fmt.Sprintf("empty entity type for property %q", prop)}
		}
		if prop == "" {
			return nil, &ConfigurationError{Key: "identifiers", Reason: fmt.Sprintf("empty identifier property for entity type %q", entityType)}
		}
	}
	if params.MaxLineBytes < 0 {
		return nil, &ConfigurationError{Key: "max line bytes", Reason: "must not be negative"}
	}
	maxLineBytes := params.MaxLineBytes
	if maxLineBytes == 0 {
		maxLineBytes = DefaultMaxLineBytes
	}

	types := NewTypeInterner()
	resolver := newIdentityResolver(types.Entities, params.Identifiers)
	nodes := newNodeStore(resolver)

	return &Builder{
		types:        types,
		resolver:     resolver,
		nodes:        nodes,
		edges:        newEdgeStore(nodes),
		maxLineBytes: maxLineBytes,
	}, nil
}

func (b *Builder) usable() error {
	if b.err != nil {
		return b.err
	}
	if b.sealed {
		return ErrSealed
	}
	return nil
}

func (b *Builder) fail(err error) error {
	b.err = err
	return err
}

// Ingest streams every file through the block parser, in order. Each file is
// closed before the next one is opened.
func (b *Builder) Ingest(ctx context.Context, files []loader.SourceFile) error {
	if err := b.usable(); err != nil {
		return err
	}

	logger.Info("[Ingest] Processing", "total_files", len(files))
	for idx, file := range files {
		logger.Debug("[Ingest] Opening source", "file", file.FilePath, "position", idx+1)
		if err := b.ingestFile(ctx, file); err != nil {
			return b.fail(fmt.Errorf("failed to ingest %s: %w", file.FilePath, err))
		}
	}
	logger.Info("[Ingest] Files processed", "nodes", b.nodes.Len(), "edges", b.edges.Len())

	return nil
}

func (b *Builder) ingestFile(ctx context.Context, file loader.SourceFile) error {
	if file.Loader == nil {
		return &SourceError{File: file.FilePath, Err: errors.New("no loader configured")}
	}
	r, err := file.Open(ctx)
	if err != nil {
		return &SourceError{File: file.FilePath, Err: err}
	}
	defer r.Close()

	return b.parse(file.FilePath, r)
}

// IngestReader ingests one already opened stream. name is used in error
// messages only. The caller keeps ownership of r.
func (b *Builder) IngestReader(name string, r io.Reader) error {
	if err := b.usable(); err != nil {
		return err
	}
	if err := b.parse(name, r); err != nil {
		return b.fail(fmt.Errorf("failed to ingest %s: %w", name, err))
	}
	return nil
}

func (b *Builder) parse(name string, r io.Reader) error {
	b.stats.Files++
	return newBlockParser(b, name).parse(r)
}

func (b *Builder) commitEntity(rawID string, entityType int, props map[string]string) int {
	id, merged := b.nodes.Add(rawID, entityType, props)
	if merged {
		b.stats.NodesMerged++
	} else {
		b.stats.NodesCreated++
	}
	return id
}

func (b *Builder) commitEdge(sourceRawID, targetRawID string, relationship int) error {
	added, err := b.edges.Add(sourceRawID, targetRawID, relationship)
	if err != nil {
		return err
	}
	b.countEdge(added)
	return nil
}

func (b *Builder) countEdge(added bool) {
	if added {
		b.stats.EdgesAdded++
	} else {
		b.stats.EdgesDuplicate++
	}
}

// Replay merges an independently built graph into this one. Its nodes are
// committed through this builder's identity resolver and its edges through
// the edge store, so matching identifiers merge and duplicate pairs collapse
// exactly as they would have during ingestion.
func (b *Builder) Replay(g *common.Graph) error {
	if err := b.usable(); err != nil {
		return err
	}
	b.replays++
	rawID := func(id int) string {
		return fmt.Sprintf("replay:%d:%d", b.replays, id)
	}

	for _, n := range g.Vertices {
		entityType := common.UntypedEntity
		if n.EntityType != common.UntypedEntity {
			name := g.EntityTypeName(n.EntityType)
			if name == "" {
				return b.fail(fmt.Errorf("failed to replay node %d: unknown entity type code %d", n.ID, n.EntityType))
			}
			entityType = b.types.InternEntityType(name)
		}
		b.commitEntity(rawID(n.ID), entityType, n.Properties)
	}

	for _, e := range g.Edges {
		name := g.RelationshipName(e.Relationship)
		if name == "" {
			return b.fail(fmt.Errorf("failed to replay edge %d -> %d: unknown relationship code %d", e.SourceID, e.TargetID, e.Relationship))
		}
		rel := b.types.InternRelationshipType(name)
		if err := b.commitEdge(rawID(e.SourceID), rawID(e.TargetID), rel); err != nil {
			return b.fail(fmt.Errorf("failed to replay graph %s: %w", g.RunID, err))
		}
	}

	logger.Info("[Ingest] Graph replayed", "run_id", g.RunID, "vertices", len(g.Vertices), "edges", len(g.Edges))
	return nil
}

// Stats returns the counters collected so far.
func (b *Builder) Stats() Stats {
	return b.stats
}

// Types exposes the type tables. They must not be modified by the caller.
func (b *Builder) Types() *TypeInterner {
	return b.types
}

// Finalize seals the builder and returns the finished graph. Finalizing a
// builder whose ingestion failed returns that failure.
func (b *Builder) Finalize(runID string) (*common.Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.sealed = true

	return &common.Graph{
		RunID:             runID,
		Vertices:          b.nodes.Nodes(),
		Edges:             b.edges.Edges(),
		EntityTypes:       b.types.Entities.Names(),
		RelationshipTypes: b.types.Relationships.Names(),
	}, nil
}
