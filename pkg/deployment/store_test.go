package deployment

import (
	"context"
	"testing"

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
		case *string:
			*v = r.values[i].(string)
		case *Status:
			*v = r.values[i].(Status)
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
	execErr   error
}

func (f *fakeDBTX) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execCalls = append(f.execCalls, sql)
	return pgconn.NewCommandTag("UPDATE 1"), f.execErr
}

func (f *fakeDBTX) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("fakeDBTX.Query not configured for this test")
}

func (f *fakeDBTX) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return f.queryRow(sql, args)
}

func TestStoreIsOwner_MatchesStoredUser(t *testing.T) {
	dbtx := &fakeDBTX{
		queryRow: func(sql string, args []any) pgx.Row {
			return &fakeRow{values: []any{"user-1"}}
		},
	}
	store := NewStore(dbtx)

	owner, err := store.IsOwner(context.Background(), "dh1", "user-1")
	if err != nil {
		t.Fatalf("IsOwner: %v", err)
	}
	if !owner {
		t.Error("IsOwner() = false, want true for the matching user")
	}

	notOwner, err := store.IsOwner(context.Background(), "dh1", "user-2")
	if err != nil {
		t.Fatalf("IsOwner: %v", err)
	}
	if notOwner {
		t.Error("IsOwner() = true, want false for a different user")
	}
}

func TestStoreIsRegistrable_TerminalStatusRejected(t *testing.T) {
	dbtx := &fakeDBTX{
		queryRow: func(sql string, args []any) pgx.Row {
			return &fakeRow{values: []any{StatusCompleted}}
		},
	}
	store := NewStore(dbtx)

	ok, err := store.IsRegistrable(context.Background(), "dh1")
	if err != nil {
		t.Fatalf("IsRegistrable: %v", err)
	}
	if ok {
		t.Error("IsRegistrable() = true, want false for a completed deployment")
	}
}

func TestStoreIsRegistrable_InProgressAccepted(t *testing.T) {
	dbtx := &fakeDBTX{
		queryRow: func(sql string, args []any) pgx.Row {
			return &fakeRow{values: []any{StatusInProgress}}
		},
	}
	store := NewStore(dbtx)

	ok, err := store.IsRegistrable(context.Background(), "dh1")
	if err != nil {
		t.Fatalf("IsRegistrable: %v", err)
	}
	if !ok {
		t.Error("IsRegistrable() = false, want true for an in-progress deployment")
	}
}

func TestStoreUpdateStatus_IssuesExecOnce(t *testing.T) {
	dbtx := &fakeDBTX{}
	store := NewStore(dbtx)

	if err := store.UpdateStatus(context.Background(), "dh1", StatusCompleted); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if len(dbtx.execCalls) != 1 {
		t.Errorf("Exec called %d times, want 1", len(dbtx.execCalls))
	}
}
