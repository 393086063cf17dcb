package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/aGit2048/virtual-debugger/internal/infrastructure/config"
	"github.com/aGit2048/virtual-debugger/internal/infrastructure/database"
)

func openTestRepo(t *testing.T) (*SQLiteRepository, *database.DB) {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "journal.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, Migrations()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB), db
}

// =============================================================================
// Record Tests
// =============================================================================

func TestRecordFillsDefaults(t *testing.T) {
	repo, _ := openTestRepo(t)

	ev := &Event{Kind: KindConnected, ClientID: "client_a"}
	if err := repo.Record(context.Background(), ev); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if ev.ID == "" {
		t.Error("Record() did not assign an ID")
	}
	if ev.CreatedAt.IsZero() {
		t.Error("Record() did not assign CreatedAt")
	}
}

func TestRecordDuplicateID(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	if err := repo.Record(ctx, &Event{ID: "evt-1", Kind: KindConnected, ClientID: "c"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := repo.Record(ctx, &Event{ID: "evt-1", Kind: KindConnected, ClientID: "c"}); err == nil {
		t.Error("Record() duplicate ID error = nil, want error")
	}
}

func TestRecordCancelledContext(t *testing.T) {
	repo, _ := openTestRepo(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := repo.Record(ctx, &Event{Kind: KindConnected, ClientID: "c"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Record() error = %v, want context.Canceled", err)
	}
}

// =============================================================================
// List Tests
// =============================================================================

func TestListMostRecentFirst(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	kinds := []Kind{KindConnectFailed, KindReconnectStarted, KindConnected, KindReconnectSucceeded}
	for i, k := range kinds {
		ev := &Event{Kind: k, ClientID: "client_a", Attempt: i, CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if err := repo.Record(ctx, ev); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	res, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != len(kinds) {
		t.Errorf("Total = %d, want %d", res.Total, len(kinds))
	}
	if res.Limit != defaultListLimit {
		t.Errorf("Limit = %d, want %d", res.Limit, defaultListLimit)
	}
	if len(res.Events) != len(kinds) {
		t.Fatalf("len(Events) = %d, want %d", len(res.Events), len(kinds))
	}
	if res.Events[0].Kind != KindReconnectSucceeded {
		t.Errorf("Events[0].Kind = %s, want %s", res.Events[0].Kind, KindReconnectSucceeded)
	}
	if !res.Events[0].CreatedAt.Equal(base.Add(3 * time.Second)) {
		t.Errorf("Events[0].CreatedAt = %v, want %v", res.Events[0].CreatedAt, base.Add(3*time.Second))
	}
	if res.Events[3].Kind != KindConnectFailed {
		t.Errorf("Events[3].Kind = %s, want %s", res.Events[3].Kind, KindConnectFailed)
	}
}

func TestListFilters(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	events := []Event{
		{Kind: KindConnected, ClientID: "a"},
		{Kind: KindDisconnected, ClientID: "a", Detail: "connection lost"},
		{Kind: KindConnected, ClientID: "b"},
		{Kind: KindReconnectExhausted, ClientID: "b", Attempt: 10},
	}
	for i := range events {
		if err := repo.Record(ctx, &events[i]); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 4},
		{"by kind", Filter{Kind: KindConnected}, 2},
		{"by client", Filter{ClientID: "b"}, 2},
		{"kind and client", Filter{Kind: KindDisconnected, ClientID: "a"}, 1},
		{"no match", Filter{Kind: KindConnectFailed}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.Total != tt.want || len(res.Events) != tt.want {
				t.Errorf("List() total/len = %d/%d, want %d", res.Total, len(res.Events), tt.want)
			}
		})
	}

	res, err := repo.List(ctx, Filter{Kind: KindDisconnected})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got := res.Events[0].Detail; got != "connection lost" {
		t.Errorf("Detail = %q, want %q", got, "connection lost")
	}
}

func TestListClampsLimit(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := repo.Record(ctx, &Event{Kind: KindConnected, ClientID: "c"}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantLimit int
		wantLen   int
	}{
		{"zero uses default", Filter{}, defaultListLimit, 3},
		{"over max", Filter{Limit: 10000}, maxListLimit, 3},
		{"page", Filter{Limit: 2}, 2, 2},
		{"offset", Filter{Limit: 2, Offset: 2}, 2, 1},
		{"negative offset", Filter{Limit: 2, Offset: -5}, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", res.Limit, tt.wantLimit)
			}
			if len(res.Events) != tt.wantLen {
				t.Errorf("len(Events) = %d, want %d", len(res.Events), tt.wantLen)
			}
		})
	}
}

func TestListEmpty(t *testing.T) {
	repo, _ := openTestRepo(t)

	res, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Events == nil {
		t.Error("Events = nil, want empty slice")
	}
}

func TestMigrationsRoundTrip(t *testing.T) {
	_, db := openTestRepo(t)
	ctx := context.Background()

	if err := db.MigrateDown(ctx, Migrations()); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	applied, pending, err := db.MigrationStatus(ctx, Migrations())
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 0 || len(pending) != 1 {
		t.Errorf("applied/pending = %d/%d, want 0/1", len(applied), len(pending))
	}
}
