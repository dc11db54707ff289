// Package neo4j implements record.Store on top of a Neo4j database where
// candidates live as :Candidate nodes.
package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/talentsync/talentsync/internal/record"
)

// Store is a Neo4j-backed record.Store.
type Store struct {
	driver neo4j.DriverWithContext
}

// New connects to Neo4j and verifies connectivity.
func New(ctx context.Context, uri, username, password string) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return &Store{driver: driver}, nil
}

func (s *Store) Get(ctx context.Context, id string) (*record.Record, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			"MATCH (c:Candidate {id: $id}) RETURN properties(c) AS props",
			map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, record.ErrNotFound
		}
		props, _ := rec.Get("props")
		return props, nil
	})
	if err != nil {
		return nil, err
	}

	props, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("candidate %s: unexpected result shape", id)
	}
	return recordFromProps(id, props), nil
}

func (s *Store) ExistsByID(ctx context.Context, id string) (bool, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			"MATCH (c:Candidate {id: $id}) RETURN count(c) AS n",
			map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		n, _ := rec.Get("n")
		return n, nil
	})
	if err != nil {
		return false, fmt.Errorf("candidate exists %s: %w", id, err)
	}

	count, _ := result.(int64)
	return count > 0, nil
}

func (s *Store) ListAllIDs(ctx context.Context) ([]string, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, "MATCH (c:Candidate) RETURN c.id AS id", nil)
		if err != nil {
			return nil, err
		}
		var ids []string
		for res.Next(ctx) {
			if id, ok := res.Record().Get("id"); ok {
				if str, ok := id.(string); ok {
					ids = append(ids, str)
				}
			}
		}
		return ids, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list candidate ids: %w", err)
	}

	ids, _ := result.([]string)
	return ids, nil
}

// Ping verifies connectivity, for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

// Close releases the underlying driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func recordFromProps(id string, props map[string]any) *record.Record {
	rec := &record.Record{ID: id, Attributes: make(map[string]string)}
	for k, v := range props {
		str, ok := v.(string)
		if !ok {
			continue
		}
		switch k {
		case "id":
		case "text":
			rec.Text = str
		default:
			rec.Attributes[k] = str
		}
	}
	return rec
}
