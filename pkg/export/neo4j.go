package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sony/gobreaker"
)

// DefaultBatchSize is the number of rows sent per Cypher statement.
const DefaultBatchSize = 500

const (
	researcherConstraintQuery = `CREATE CONSTRAINT researcher_code IF NOT EXISTS FOR (r:Researcher) REQUIRE r.code IS UNIQUE`

	upsertResearchersQuery = `
		UNWIND $rows AS row
		MERGE (r:Researcher {code: row.code})
		SET r.label = row.label, r.run_id = $run_id`

	upsertAdvisedQuery = `
		UNWIND $rows AS row
		MERGE (a:Researcher {code: row.source})
		MERGE (s:Researcher {code: row.target})
		MERGE (a)-[e:ADVISED {year: row.year}]->(s)
		SET e.institution = row.institution, e.run_id = $run_id`
)

// Neo4jConfig holds the connection and batching settings of the Neo4j sink.
type Neo4jConfig struct {
	URI       string
	Username  string
	Password  string
	Database  string
	BatchSize int
	// FailureThreshold consecutive failed batches open the circuit.
	FailureThreshold uint32
	// OpenTimeout is how long the circuit stays open before a trial batch.
	OpenTimeout time.Duration
}

// cypherRunner executes one write statement.
type cypherRunner interface {
	Run(ctx context.Context, query string, params map[string]any) error
	Close(ctx context.Context) error
}

type driverRunner struct {
	client   neo4j.DriverWithContext
	database string
}

func (d *driverRunner) Run(ctx context.Context, query string, params map[string]any) error {
	session := d.client.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: d.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	return err
}

func (d *driverRunner) Close(ctx context.Context) error {
	return d.client.Close(ctx)
}

// Neo4jSink writes researchers as :Researcher nodes and advisor relations as
// :ADVISED relationships. Batches go through a circuit breaker so an
// unreachable server fails the export quickly instead of timing out on every
// batch.
type Neo4jSink struct {
	runner    cypherRunner
	breaker   *gobreaker.CircuitBreaker
	batchSize int
	logger    *slog.Logger
}

// NewNeo4jSink connects to the configured server.
func NewNeo4jSink(ctx context.Context, cfg Neo4jConfig, logger *slog.Logger) (*Neo4jSink, error) {
	client, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := client.VerifyConnectivity(ctx); err != nil {
		client.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j at %s: %w", cfg.URI, err)
	}

	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}
	return newNeo4jSink(&driverRunner{client: client, database: database}, cfg, logger), nil
}

func newNeo4jSink(runner cypherRunner, cfg Neo4jConfig, logger *slog.Logger) *Neo4jSink {
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := cfg.BatchSize
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 3
	}
	timeout := cfg.OpenTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "neo4j",
		Timeout: timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Neo4jSink{
		runner:    runner,
		breaker:   breaker,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Name implements Sink.
func (s *Neo4jSink) Name() string {
	return "neo4j"
}

// Export merges the run into the graph. Only resolved edges are written, so
// each relationship carries a single institution.
func (s *Neo4jSink) Export(ctx context.Context, ds *Dataset) error {
	runID := ds.RunID.String()

	if err := s.exec(ctx, researcherConstraintQuery, nil); err != nil {
		return fmt.Errorf("failed to create researcher constraint: %w", err)
	}

	nodes := make([]any, len(ds.Nodes))
	for i, n := range ds.Nodes {
		nodes[i] = map[string]any{"code": n.Code, "label": n.Label}
	}
	if err := s.batches(ctx, upsertResearchersQuery, runID, nodes); err != nil {
		return fmt.Errorf("failed to write researchers: %w", err)
	}

	resolved := ds.ResolvedEdges()
	edges := make([]any, len(resolved))
	for i, e := range resolved {
		edges[i] = map[string]any{
			"source":      e.Source,
			"target":      e.Target,
			"year":        int64(e.Year),
			"institution": e.Institution,
		}
	}
	if err := s.batches(ctx, upsertAdvisedQuery, runID, edges); err != nil {
		return fmt.Errorf("failed to write advised relationships: %w", err)
	}

	s.logger.Debug("Neo4j export finished", "run_id", runID, "researchers", len(nodes), "relationships", len(edges))
	return nil
}

// Close closes the driver.
func (s *Neo4jSink) Close() error {
	return s.runner.Close(context.Background())
}

func (s *Neo4jSink) batches(ctx context.Context, query, runID string, rows []any) error {
	for start := 0; start < len(rows); start += s.batchSize {
		end := min(start+s.batchSize, len(rows))
		params := map[string]any{
			"rows":   rows[start:end],
			"run_id": runID,
		}
		if err := s.exec(ctx, query, params); err != nil {
			return fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (s *Neo4jSink) exec(ctx context.Context, query string, params map[string]any) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.runner.Run(ctx, query, params)
	})
	return err
}
