package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/OFFIS-RIT/mt2n/pkg/common"
	"github.com/OFFIS-RIT/mt2n/pkg/logger"
	"github.com/OFFIS-RIT/mt2n/pkg/store"
)

const (
	nodeChunk = 1000
	edgeChunk = 5000
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// GraphDBStorage implements the GraphStorage interface on PostgreSQL. A graph
// is written in a single transaction using chunked unnest inserts.
type GraphDBStorage struct {
	conn pgxIConn
}

// NewGraphDBStorageWithConnection creates a GraphDBStorage on an existing
// connection or pool. The schema must already be migrated, see Migrate.
func NewGraphDBStorageWithConnection(conn pgxIConn) *GraphDBStorage {
	return &GraphDBStorage{conn: conn}
}

var _ store.GraphStorage = (*GraphDBStorage)(nil)

func (s *GraphDBStorage) SaveGraph(ctx context.Context, g *common.Graph) error {
	if g.RunID == "" {
		return errors.New("graph has no run id")
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO graph_runs (id, node_count, edge_count) VALUES ($1, $2, $3)`,
		g.RunID, len(g.Vertices), len(g.Edges),
	); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", g.RunID, err)
	}

	if err := insertTypes(ctx, tx, "entity_types", g.RunID, g.EntityTypes); err != nil {
		return err
	}
	if err := insertTypes(ctx, tx, "relationship_types", g.RunID, g.RelationshipTypes); err != nil {
		return err
	}
	if err := insertNodes(ctx, tx, g.RunID, g.Vertices); err != nil {
		return err
	}
	if err := insertEdges(ctx, tx, g.RunID, g.Edges); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", g.RunID, err)
	}

	logger.Info("[Store] Graph saved", "run_id", g.RunID, "vertices", len(g.Vertices), "edges", len(g.Edges))
	return nil
}

func insertTypes(ctx context.Context, tx pgxv5.Tx, table, runID string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	codes := make([]int32, len(names))
	for i := range names {
		codes[i] = int32(i)
	}

	sql := fmt.Sprintf(
		`INSERT INTO %s (run_id, code, name) SELECT $1, code, name FROM unnest($2::int[], $3::text[]) AS t(code, name)`,
		table,
	)
	if _, err := tx.Exec(ctx, sql, runID, codes, names); err != nil {
		return fmt.Errorf("failed to insert %s: %w", table, err)
	}
	return nil
}

func insertNodes(ctx context.Context, tx pgxv5.Tx, runID string, nodes []common.Node) error {
	return store.ChunkRange(len(nodes), nodeChunk, func(start, end int) error {
		chunk := nodes[start:end]
		ids := make([]int32, len(chunk))
		types := make([]int32, len(chunk))
		props := make([]string, len(chunk))
		for i, n := range chunk {
			ids[i] = int32(n.ID)
			types[i] = int32(n.EntityType)
			properties := n.Properties
			if properties == nil {
				properties = map[string]string{}
			}
			data, err := json.Marshal(properties)
			if err != nil {
				return fmt.Errorf("failed to marshal properties of node %d: %w", n.ID, err)
			}
			props[i] = string(data)
		}

		logger.Debug("[Store] Saving nodes", "run_id", runID, "from", start, "to", end)
		if _, err := tx.Exec(ctx,
			`INSERT INTO nodes (run_id, id, entity_type, properties)
			 SELECT $1, id, entity_type, properties::jsonb
			 FROM unnest($2::int[], $3::int[], $4::text[]) AS t(id, entity_type, properties)`,
			runID, ids, types, props,
		); err != nil {
			return fmt.Errorf("failed to insert nodes %d-%d: %w", start, end, err)
		}
		return nil
	})
}

func insertEdges(ctx context.Context, tx pgxv5.Tx, runID string, edges []common.Edge) error {
	return store.ChunkRange(len(edges), edgeChunk, func(start, end int) error {
		chunk := edges[start:end]
		sources := make([]int32, len(chunk))
		targets := make([]int32, len(chunk))
		rels := make([]int32, len(chunk))
		for i, e := range chunk {
			sources[i] = int32(e.SourceID)
			targets[i] = int32(e.TargetID)
			rels[i] = int32(e.Relationship)
		}

		logger.Debug("[Store] Saving edges", "run_id", runID, "from", start, "to", end)
		if _, err := tx.Exec(ctx,
			`INSERT INTO edges (run_id, source_id, target_id, relationship)
			 SELECT $1, source_id, target_id, relationship
			 FROM unnest($2::int[], $3::int[], $4::int[]) AS t(source_id, target_id, relationship)`,
			runID, sources, targets, rels,
		); err != nil {
			return fmt.Errorf("failed to insert edges %d-%d: %w", start, end, err)
		}
		return nil
	})
}
