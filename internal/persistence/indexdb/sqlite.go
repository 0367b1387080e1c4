package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"rybalka.web/internal/session"
)

// SQLiteIndex is a queryable copy of the action journal plus a record of every
// snapshot cache write. Writes are queued and applied by one goroutine.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropActionTotal   atomic.Uint64
	dropSnapshotTotal atomic.Uint64
}

type reqKind int

const (
	reqAction reqKind = iota + 1
	reqSnapshot
	reqFlush
)

type req struct {
	kind reqKind

	action   session.Entry
	snapshot snapshotRow
	done     chan struct{}
}

type snapshotRow struct {
	UserID    string
	Path      string
	Money     int64
	Worms     int
	Items     int
	FetchedAt time.Time
}

// Stats reports queue pressure. Dropped writes are still in the JSONL journal.
type Stats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	DropActionTotal   uint64 `json:"drop_action_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			user_id TEXT NOT NULL,
			action TEXT NOT NULL,
			outcome TEXT NOT NULL,
			message TEXT,
			money INTEGER NOT NULL,
			worms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_user ON actions(user_id, id);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			user_id TEXT NOT NULL,
			path TEXT NOT NULL,
			money INTEGER NOT NULL,
			worms INTEGER NOT NULL,
			items INTEGER NOT NULL,
			fetched_at TEXT NOT NULL,
			PRIMARY KEY (user_id, fetched_at)
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Record queues an action row. It never blocks the session; a full queue drops.
func (s *SQLiteIndex) Record(e session.Entry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAction, action: e}:
	default:
		s.dropActionTotal.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap session.Snapshot) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		UserID:    snap.Profile.UserID,
		Path:      path,
		Money:     snap.Profile.Money,
		Worms:     snap.Profile.Worms,
		Items:     len(snap.Inventory) + len(snap.Equipped),
		FetchedAt: snap.FetchedAt,
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshotTotal.Add(1)
	}
}

// Flush waits until everything queued before it is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recent returns the newest actions for userID, newest first.
func (s *SQLiteIndex) Recent(ctx context.Context, userID string, limit int) ([]session.Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	if err := s.Flush(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, user_id, action, outcome, COALESCE(message,''), money, worms
		 FROM actions WHERE user_id = ? ORDER BY id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []session.Entry
	for rows.Next() {
		var (
			e  session.Entry
			at string
		)
		var action, outcome string
		if err := rows.Scan(&at, &e.UserID, &action, &outcome, &e.Message, &e.Money, &e.Worms); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		e.Action = session.Action(action)
		e.Outcome = session.Outcome(outcome)
		out = append(out, e)
	}
	return out, rows.Err()
}

// OutcomeCounts tallies userID's recorded actions by outcome.
func (s *SQLiteIndex) OutcomeCounts(ctx context.Context, userID string) (map[session.Outcome]int, error) {
	if err := s.Flush(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM actions WHERE user_id = ? GROUP BY outcome`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[session.Outcome]int{}
	for rows.Next() {
		var (
			k string
			n int
		)
		if err := rows.Scan(&k, &n); err != nil {
			return nil, err
		}
		out[session.Outcome(k)] = n
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropActionTotal:   s.dropActionTotal.Load(),
		DropSnapshotTotal: s.dropSnapshotTotal.Load(),
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertAction, _ := s.db.Prepare(`INSERT INTO actions(at,user_id,action,outcome,message,money,worms) VALUES(?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(user_id,path,money,worms,items,fetched_at) VALUES(?,?,?,?,?,?)`)
	defer func() {
		if insertAction != nil {
			_ = insertAction.Close()
		}
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqAction:
			a := r.action
			if insertAction != nil {
				if _, err := tx.Stmt(insertAction).Exec(
					a.At.UTC().Format(time.RFC3339Nano),
					a.UserID,
					string(a.Action),
					string(a.Outcome),
					a.Message,
					a.Money,
					a.Worms,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(
					sn.UserID,
					sn.Path,
					sn.Money,
					sn.Worms,
					sn.Items,
					sn.FetchedAt.UTC().Format(time.RFC3339Nano),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
