package v3

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Graph is the in-memory assembly of one analysis run's extracted
// facts, built once and read by every analyzer in analyzers.go. Kept
// separate from GraphStore so the analyzers stay pure functions that
// tests can exercise without a live Neo4j instance.
type Graph struct {
	Entities map[string]Entity
	// EntityDocs maps an entity name to every doc_id that mentions it —
	// the bus-factor and tribal-knowledge analyzers' primary signal.
	EntityDocs map[string][]string
	Relationships []Relationship
	Decisions     []Decision
	Events        []TemporalEvent
}

// BuildGraph folds per-document extraction output into one queryable
// graph. Entities are deduplicated by name; on a Type conflict the
// later entry in facts wins, which under PrepareCorpus's
// most-recent-first ordering is the older document's Type.
func BuildGraph(facts []ExtractedFacts) *Graph {
	g := &Graph{
		Entities:   map[string]Entity{},
		EntityDocs: map[string][]string{},
	}
	for _, f := range facts {
		for _, e := range f.Entities {
			g.Entities[e.Name] = e
			g.EntityDocs[e.Name] = append(g.EntityDocs[e.Name], f.DocID)
		}
		g.Relationships = append(g.Relationships, f.Relationships...)
		g.Decisions = append(g.Decisions, f.Decisions...)
		g.Events = append(g.Events, f.Events...)
	}
	return g
}

// GraphStore persists a Graph's facts into Neo4j for downstream
// exploration tools; the analyzers in this package never read back
// from it. A nil store skips persistence without affecting gap
// generation; a Persist error fails the v3 analysis run.
type GraphStore struct {
	driver neo4j.DriverWithContext
}

// NewGraphStore opens a driver against uri. Connectivity isn't verified
// until the first session, matching the neo4j-go-driver's lazy-connect
// design.
func NewGraphStore(uri, user, password string) (*GraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("v3.NewGraphStore: %w", err)
	}
	return &GraphStore{driver: driver}, nil
}

// Close releases the driver's connection pool.
func (s *GraphStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Persist MERGEs every entity, relationship, and temporal event under
// tenantID so repeated analysis runs accumulate one graph per tenant
// instead of duplicating nodes.
func (s *GraphStore) Persist(ctx context.Context, tenantID string, facts []ExtractedFacts) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, f := range facts {
			for _, e := range f.Entities {
				if _, err := tx.Run(ctx,
					`MERGE (n:Entity {tenant_id: $tenant, name: $name}) SET n.type = $type`,
					map[string]any{"tenant": tenantID, "name": e.Name, "type": e.Type}); err != nil {
					return nil, err
				}
			}
			for _, r := range f.Relationships {
				if _, err := tx.Run(ctx, `
					MATCH (a:Entity {tenant_id: $tenant, name: $from})
					MATCH (b:Entity {tenant_id: $tenant, name: $to})
					MERGE (a)-[rel:RELATES {type: $type}]->(b)`,
					map[string]any{"tenant": tenantID, "from": r.From, "to": r.To, "type": r.Type}); err != nil {
					return nil, err
				}
			}
			for _, ev := range f.Events {
				if _, err := tx.Run(ctx,
					`MERGE (e:Event {tenant_id: $tenant, doc_id: $doc, at: $at, what: $what})`,
					map[string]any{"tenant": tenantID, "doc": f.DocID, "at": ev.At, "what": ev.What}); err != nil {
					return nil, err
				}
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("v3.GraphStore.Persist: %w", err)
	}
	return nil
}
