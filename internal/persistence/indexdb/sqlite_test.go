package indexdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"rybalka.web/internal/game"
	"rybalka.web/internal/session"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqAction}

	_ = s.Record(session.Entry{Action: session.ActionCast})
	s.RecordSnapshot("/tmp/u1.snap.zst", session.Snapshot{})

	st := s.Stats()
	if st.DropActionTotal != 1 {
		t.Fatalf("DropActionTotal=%d want=1", st.DropActionTotal)
	}
	if st.DropSnapshotTotal != 1 {
		t.Fatalf("DropSnapshotTotal=%d want=1", st.DropSnapshotTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_RecentAndCounts(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index", "actions.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer func() { _ = idx.Close() }()

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	entries := []session.Entry{
		{At: base, UserID: "u1", Action: session.ActionCast, Outcome: session.OutcomeOK, Message: "Pike", Worms: 9},
		{At: base.Add(time.Second), UserID: "u1", Action: session.ActionSell, Outcome: session.OutcomeOK, Money: 465, Worms: 9},
		{At: base.Add(2 * time.Second), UserID: "u2", Action: session.ActionCast, Outcome: session.OutcomeMiss},
		{At: base.Add(3 * time.Second), UserID: "u1", Action: session.ActionBuy, Outcome: session.OutcomeRejected, Message: "Not enough money", Money: 465, Worms: 9},
	}
	for _, e := range entries {
		if err := idx.Record(e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	ctx := context.Background()
	got, err := idx.Recent(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows want 2", len(got))
	}
	if got[0].Action != session.ActionBuy || got[0].Outcome != session.OutcomeRejected || got[0].Message != "Not enough money" {
		t.Fatalf("newest=%+v", got[0])
	}
	if got[1].Action != session.ActionSell || got[1].Money != 465 || !got[1].At.Equal(base.Add(time.Second)) {
		t.Fatalf("second=%+v", got[1])
	}

	counts, err := idx.OutcomeCounts(ctx, "u1")
	if err != nil {
		t.Fatalf("OutcomeCounts: %v", err)
	}
	if counts[session.OutcomeOK] != 2 || counts[session.OutcomeRejected] != 1 || counts[session.OutcomeMiss] != 0 {
		t.Fatalf("counts=%v", counts)
	}
}

func TestSQLiteIndex_RecordSnapshot(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "actions.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer func() { _ = idx.Close() }()

	snap := session.Snapshot{
		Profile:   game.Profile{UserID: "u1", Money: 10, Worms: 3},
		Inventory: []game.Item{{Name: "Ultra spoon"}},
		FetchedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	idx.RecordSnapshot("/data/u1.snap.zst", snap)
	idx.RecordSnapshot("/data/u1.snap.zst", snap)
	if err := idx.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	var n, items int
	if err := idx.db.QueryRow(`SELECT COUNT(*), MAX(items) FROM snapshots WHERE user_id = 'u1'`).Scan(&n, &items); err != nil {
		t.Fatalf("query: %v", err)
	}
	if n != 1 || items != 1 {
		t.Fatalf("rows=%d items=%d", n, items)
	}
}

func TestSQLiteIndex_ClosedIsNoop(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "actions.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := idx.Record(session.Entry{}); err != nil {
		t.Fatalf("Record after close: %v", err)
	}
	if err := idx.Flush(context.Background()); err != nil {
		t.Fatalf("Flush after close: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
