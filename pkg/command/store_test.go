package command

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeRow implements pgx.Row by copying a canned set of column values into
// Scan's destinations in order, letting a store test run against a single
// canned row without a live Postgres.
type fakeRow struct {
	values []any
	err    error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		if i >= len(r.values) {
			break
		}
		switch v := d.(type) {
		case *int64:
			*v = r.values[i].(int64)
		case *Status:
			*v = r.values[i].(Status)
		case *uuid.UUID:
			*v = r.values[i].(uuid.UUID)
		}
	}
	return nil
}

// fakeDBTX implements db.DBTX against a canned QueryRow responder and
// records every Exec call, so a store method can be exercised without a
// live Postgres connection.
type fakeDBTX struct {
	queryRow  func(sql string, args []any) pgx.Row
	execCalls []string
	execTag   pgconn.CommandTag
	execErr   error
}

func (f *fakeDBTX) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execCalls = append(f.execCalls, sql)
	return f.execTag, f.execErr
}

func (f *fakeDBTX) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("fakeDBTX.Query not configured for this test")
}

func (f *fakeDBTX) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return f.queryRow(sql, args)
}

func TestStoreUpdateStatus_RejectsIllegalTransition(t *testing.T) {
	dbtx := &fakeDBTX{
		queryRow: func(sql string, args []any) pgx.Row {
			return &fakeRow{values: []any{int64(1), StatusCompleted}}
		},
	}
	store := NewStore(dbtx)

	applied, err := store.UpdateStatus(context.Background(), uuid.New(), StatusRunning, nil, nil)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if applied {
		t.Error("applied = true, want false for a transition out of a terminal status")
	}
	if len(dbtx.execCalls) != 0 {
		t.Errorf("Exec called %d times, want 0 for a rejected transition", len(dbtx.execCalls))
	}
}

func TestStoreUpdateStatus_AppliesLegalTransition(t *testing.T) {
	dbtx := &fakeDBTX{
		queryRow: func(sql string, args []any) pgx.Row {
			return &fakeRow{values: []any{int64(1), StatusSent}}
		},
		execTag: pgconn.NewCommandTag("UPDATE 1"),
	}
	store := NewStore(dbtx)

	applied, err := store.UpdateStatus(context.Background(), uuid.New(), StatusCompleted, map[string]any{"ok": true}, nil)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if !applied {
		t.Error("applied = false, want true for sent -> completed")
	}
	if len(dbtx.execCalls) != 1 {
		t.Errorf("Exec called %d times, want 1 for an applied transition", len(dbtx.execCalls))
	}
}

func TestStoreCancel_RejectsNonCancellableStatus(t *testing.T) {
	dbtx := &fakeDBTX{
		queryRow: func(sql string, args []any) pgx.Row {
			return &fakeRow{values: []any{int64(1), StatusCompleted}}
		},
	}
	store := NewStore(dbtx)

	cancelled, err := store.Cancel(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled {
		t.Error("cancelled = true, want false for an already-completed command")
	}
	if len(dbtx.execCalls) != 0 {
		t.Errorf("Exec called %d times, want 0 for a rejected cancel", len(dbtx.execCalls))
	}
}

func TestStoreCancel_AppliesFromPending(t *testing.T) {
	dbtx := &fakeDBTX{
		queryRow: func(sql string, args []any) pgx.Row {
			return &fakeRow{values: []any{int64(1), StatusPending}}
		},
		execTag: pgconn.NewCommandTag("UPDATE 1"),
	}
	store := NewStore(dbtx)

	cancelled, err := store.Cancel(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if !cancelled {
		t.Error("cancelled = false, want true for a pending command")
	}
	if len(dbtx.execCalls) != 2 {
		t.Errorf("Exec called %d times, want 2 (status update + queue delete)", len(dbtx.execCalls))
	}
}

func TestStoreMarkTimedOut_ReturnsRowsAffected(t *testing.T) {
	dbtx := &fakeDBTX{
		execTag: pgconn.NewCommandTag("UPDATE 3"),
	}
	store := NewStore(dbtx)

	n, err := store.MarkTimedOut(context.Background())
	if err != nil {
		t.Fatalf("MarkTimedOut: %v", err)
	}
	if n != 3 {
		t.Errorf("MarkTimedOut() = %d, want 3", n)
	}
}
