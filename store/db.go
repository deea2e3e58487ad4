// Package store persists run results to Postgres.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

type Run struct {
	ID        string
	StartedAt time.Time
	Status    string
}

type Suite struct {
	ID       int
	RunID    string
	Name     string
	Status   string
	Loops    int
	Aborted  bool
	Passed   int
	Failed   int
	Skipped  int
	KTF      int
	Runtime  float64
	Finished time.Time
}

type TestRecord struct {
	ID         int
	SuiteID    int
	Name       string
	Loop       int
	Row        int
	Status     string
	Importance string
	BugRef     string
	Runtime    float64
	Message    string
}

type UnitRecord struct {
	TestID  int
	Name    string
	Row     int
	Status  string
	Runtime float64
	Message string
}

type Connection interface {
	LastRun(ctx context.Context) (*Run, error)

	Begin(ctx context.Context) (Transactor, error)
	Close() error
}

type Transactor interface {
	InsertRun(ctx context.Context, r Run) error
	InsertSuite(ctx context.Context, s Suite) (int, error)
	InsertTestRecord(ctx context.Context, tr TestRecord) (int, error)
	InsertUnitRecord(ctx context.Context, ur UnitRecord) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context)
}

type PGXDB struct {
	conn *pgxpool.Pool
	log  log.Logger
}

var _ Connection = (*PGXDB)(nil)

func New(ctx context.Context, uri string, logger log.Logger) (*PGXDB, error) {
	conn, err := pgxpool.New(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}

	return &PGXDB{conn: conn, log: logger}, nil
}

// Migrate creates the result tables when they do not exist.
func (p *PGXDB) Migrate(ctx context.Context) error {
	if _, err := p.conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (p *PGXDB) LastRun(ctx context.Context) (*Run, error) {
	sql := `
SELECT id, started_at, status
FROM runs ORDER BY started_at DESC LIMIT 1
`

	row := p.conn.QueryRow(ctx, sql)
	var r Run
	if err := row.Scan(&r.ID, &r.StartedAt, &r.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to get last run: %w", err)
	}
	return &r, nil
}

func (p *PGXDB) Begin(ctx context.Context) (Transactor, error) {
	tx, err := p.conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &PGXTransactor{tx: tx, log: p.log}, nil
}

func (p *PGXDB) Close() error {
	p.conn.Close()
	return nil
}

type PGXTransactor struct {
	tx  pgx.Tx
	log log.Logger
	mtx sync.Mutex
}

func (p *PGXTransactor) InsertRun(ctx context.Context, r Run) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	sql := `
INSERT INTO runs (id, started_at, status)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status
`

	if _, err := p.tx.Exec(ctx, sql, r.ID, r.StartedAt, r.Status); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (p *PGXTransactor) InsertSuite(ctx context.Context, s Suite) (int, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	sql := `
INSERT INTO suites (run_id, name, status, loops, aborted, passed, failed, skipped, ktf, runtime, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id
`

	row := p.tx.QueryRow(ctx,
		sql,
		s.RunID,
		s.Name,
		s.Status,
		s.Loops,
		s.Aborted,
		s.Passed,
		s.Failed,
		s.Skipped,
		s.KTF,
		s.Runtime,
		s.Finished,
	)
	var id int
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert suite: %w", err)
	}
	return id, nil
}

func (p *PGXTransactor) InsertTestRecord(ctx context.Context, tr TestRecord) (int, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	sql := `
INSERT INTO test_records (suite_id, name, loop, row_index, status, importance, bug_ref, runtime, message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id
`

	row := p.tx.QueryRow(ctx,
		sql,
		tr.SuiteID,
		tr.Name,
		tr.Loop,
		tr.Row,
		tr.Status,
		tr.Importance,
		tr.BugRef,
		tr.Runtime,
		tr.Message,
	)
	var id int
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert test record: %w", err)
	}
	return id, nil
}

func (p *PGXTransactor) InsertUnitRecord(ctx context.Context, ur UnitRecord) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	sql := `
INSERT INTO unit_records (test_id, name, row_index, status, runtime, message)
VALUES ($1, $2, $3, $4, $5, $6)
`

	if _, err := p.tx.Exec(ctx, sql, ur.TestID, ur.Name, ur.Row, ur.Status, ur.Runtime, ur.Message); err != nil {
		return fmt.Errorf("failed to insert unit record: %w", err)
	}
	return nil
}

func (p *PGXTransactor) Commit(ctx context.Context) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.tx.Commit(ctx)
}

func (p *PGXTransactor) Rollback(ctx context.Context) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if err := p.tx.Rollback(ctx); err != nil {
		p.log.Error("error rolling back transaction", "err", err)
	}
}
