package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PbVrCt/serverless-chat-demo/internal/errs"
)

var baseTime = time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	db, err := OpenSQLite(context.Background(), ":memory:", nil)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db, nil)
}

// backends returns a fresh instance of every Store implementation.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"sqlite":   newSQLiteStore(t),
		"memory":   NewMemoryStore(nil),
		"dynamodb": NewDynamoStore(newFakeDynamo(2), "messages", 3, nil),
	}
}

func testMessage(i int, tenant string, ai bool) *Message {
	return &Message{
		ID:                fmt.Sprintf("msg-%02d", i),
		CreatedAt:         baseTime.Add(time.Duration(i) * time.Second),
		Text:              fmt.Sprintf("text %d", i),
		AIGenerated:       ai,
		AuthorDisplayName: "user-" + tenant,
		TenantID:          tenant,
	}
}

func TestStoreAppendAndScanRoundTrip(t *testing.T) {
	t.Parallel()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			want := []*Message{
				testMessage(1, "tenant-a", false),
				testMessage(2, "tenant-b", true),
				testMessage(3, "tenant-a", true),
			}
			for _, m := range want {
				if err := store.Append(ctx, m); err != nil {
					t.Fatalf("Append(%s) error = %v", m.ID, err)
				}
			}

			got, err := store.ScanAll(ctx)
			if err != nil {
				t.Fatalf("ScanAll() error = %v", err)
			}
			if len(got) != len(want) {
				t.Fatalf("ScanAll() returned %d messages, want %d", len(got), len(want))
			}

			byID := make(map[string]Message, len(got))
			for _, m := range got {
				byID[m.ID] = m
			}
			for _, w := range want {
				g, ok := byID[w.ID]
				if !ok {
					t.Fatalf("message %s missing from scan", w.ID)
				}
				if !g.CreatedAt.Equal(w.CreatedAt) || g.Text != w.Text || g.AIGenerated != w.AIGenerated ||
					g.AuthorDisplayName != w.AuthorDisplayName || g.TenantID != w.TenantID {
					t.Errorf("round trip mismatch:\n got  %+v\n want %+v", g, *w)
				}
			}
		})
	}
}

func TestStoreScanPreservesInsertionOrder(t *testing.T) {
	t.Parallel()

	ordered := map[string]Store{
		"sqlite": newSQLiteStore(t),
		"memory": NewMemoryStore(nil),
	}
	for name, store := range ordered {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			// Same timestamp for all: only insertion order distinguishes them.
			for _, id := range []string{"c", "a", "b"} {
				m := testMessage(0, "tenant-a", true)
				m.ID = id
				if err := store.Append(ctx, m); err != nil {
					t.Fatalf("Append() error = %v", err)
				}
			}

			got, err := store.ScanAll(ctx)
			if err != nil {
				t.Fatalf("ScanAll() error = %v", err)
			}
			order := ""
			for _, m := range got {
				order += m.ID
			}
			if order != "cab" {
				t.Errorf("scan order = %q, want %q", order, "cab")
			}
		})
	}
}

func TestStoreDeleteAll(t *testing.T) {
	t.Parallel()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			n, err := store.DeleteAll(ctx)
			if err != nil || n != 0 {
				t.Fatalf("DeleteAll() on empty store = (%d, %v), want (0, nil)", n, err)
			}

			for i := range 7 {
				if err := store.Append(ctx, testMessage(i, "tenant-a", i%2 == 0)); err != nil {
					t.Fatalf("Append() error = %v", err)
				}
			}

			n, err = store.DeleteAll(ctx)
			if err != nil {
				t.Fatalf("DeleteAll() error = %v", err)
			}
			if n != 7 {
				t.Errorf("DeleteAll() deleted %d, want 7", n)
			}

			left, err := store.ScanAll(ctx)
			if err != nil {
				t.Fatalf("ScanAll() error = %v", err)
			}
			if len(left) != 0 {
				t.Errorf("ScanAll() after DeleteAll returned %d messages", len(left))
			}
		})
	}
}

func TestStoreAppendValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Message) *Message
	}{
		{"nil message", func(*Message) *Message { return nil }},
		{"missing id", func(m *Message) *Message { m.ID = ""; return m }},
		{"missing tenant", func(m *Message) *Message { m.TenantID = ""; return m }},
		{"empty text", func(m *Message) *Message { m.Text = ""; return m }},
		{"zero timestamp", func(m *Message) *Message { m.CreatedAt = time.Time{}; return m }},
	}

	for name, store := range backends(t) {
		for _, tc := range tests {
			t.Run(name+"/"+tc.name, func(t *testing.T) {
				t.Parallel()

				err := store.Append(context.Background(), tc.mutate(testMessage(1, "tenant-a", false)))
				if !errors.Is(err, errs.ErrValidation) {
					t.Errorf("Append() error = %v, want ErrValidation", err)
				}
			})
		}
	}
}

func TestSQLiteStoreDuplicateIDIsStoreError(t *testing.T) {
	t.Parallel()

	store := newSQLiteStore(t)
	ctx := context.Background()

	if err := store.Append(ctx, testMessage(1, "tenant-a", false)); err != nil {
		t.Fatalf("first Append() error = %v", err)
	}
	err := store.Append(ctx, testMessage(1, "tenant-b", true))
	if !errors.Is(err, errs.ErrStoreUnavailable) {
		t.Errorf("duplicate Append() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestSQLiteStorePingAndMaintenance(t *testing.T) {
	t.Parallel()

	store := newSQLiteStore(t)
	ctx := context.Background()

	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if err := store.Append(ctx, testMessage(1, "tenant-a", false)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := store.RunMaintenance(ctx); err != nil {
		t.Errorf("RunMaintenance() error = %v", err)
	}
}

func TestSQLiteStoreClosedDBIsStoreError(t *testing.T) {
	t.Parallel()

	db, err := OpenSQLite(context.Background(), ":memory:", nil)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	store := NewStore(db, nil)
	_ = db.Close()

	if _, err := store.ScanAll(context.Background()); !errors.Is(err, errs.ErrStoreUnavailable) {
		t.Errorf("ScanAll() error = %v, want ErrStoreUnavailable", err)
	}
	if err := store.Append(context.Background(), testMessage(1, "t", false)); !errors.Is(err, errs.ErrStoreUnavailable) {
		t.Errorf("Append() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestMessageVisibleTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		msg       Message
		requester string
		want      bool
	}{
		{"own human message", Message{TenantID: "a"}, "a", true},
		{"other tenant human message", Message{TenantID: "b"}, "a", false},
		{"own ai message", Message{TenantID: "a", AIGenerated: true}, "a", true},
		{"other tenant ai message", Message{TenantID: "b", AIGenerated: true}, "a", true},
	}
	for _, tc := range tests {
		if got := tc.msg.VisibleTo(tc.requester); got != tc.want {
			t.Errorf("%s: VisibleTo() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestTimestampFormat(t *testing.T) {
	t.Parallel()

	ts := time.Date(2023, 5, 1, 10, 0, 0, 750_000_000, time.UTC)
	if got, want := FormatTimestamp(ts), "2023-05-01T10:00:00+00:00"; got != want {
		t.Errorf("FormatTimestamp() = %q, want %q", got, want)
	}

	local := time.Date(2023, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	if got, want := FormatTimestamp(local), "2023-05-01T10:00:00+00:00"; got != want {
		t.Errorf("FormatTimestamp(local) = %q, want %q", got, want)
	}

	for _, in := range []string{
		"2023-05-01T10:00:00+00:00",
		"2023-05-01T12:00:00+02:00",
		"2023-05-01T10:00:00Z",
	} {
		got, err := ParseTimestamp(in)
		if err != nil {
			t.Errorf("ParseTimestamp(%q) error = %v", in, err)
			continue
		}
		if !got.Equal(time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)) {
			t.Errorf("ParseTimestamp(%q) = %v", in, got)
		}
	}

	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Error("ParseTimestamp(garbage) succeeded")
	}
}

func TestSQLiteFileSurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chat.db")

	db, err := OpenSQLite(ctx, path, nil)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if err := NewStore(db, nil).Append(ctx, testMessage(1, "tenant-a", true)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// The second open finds the schema already migrated.
	db, err = OpenSQLite(ctx, path, nil)
	if err != nil {
		t.Fatalf("reopen OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	got, err := NewStore(db, nil).ScanAll(ctx)
	if err != nil {
		t.Fatalf("ScanAll() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "msg-01" {
		t.Errorf("ScanAll() after reopen = %+v", got)
	}

	var mode string
	if err := db.GetContext(ctx, &mode, "PRAGMA journal_mode"); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestSQLiteDSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path    string
		prefix  string
		wantWAL bool
	}{
		{"storage.db", "storage.db?", true},
		{"file:storage.db?cache=shared", "file:storage.db?cache=shared&", true},
		{":memory:", ":memory:?", false},
	}
	for _, tc := range tests {
		dsn := sqliteDSN(tc.path)
		if !strings.HasPrefix(dsn, tc.prefix) {
			t.Errorf("sqliteDSN(%q) = %q, want prefix %q", tc.path, dsn, tc.prefix)
		}
		if !strings.Contains(dsn, "busy_timeout%285000%29") {
			t.Errorf("sqliteDSN(%q) = %q, missing busy_timeout", tc.path, dsn)
		}
		if got := strings.Contains(dsn, "journal_mode"); got != tc.wantWAL {
			t.Errorf("sqliteDSN(%q) journal_mode set = %v, want %v", tc.path, got, tc.wantWAL)
		}
	}
}

func TestMigrationTarget(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"storage.db":                      "storage.db",
		"file:storage.db?_pragma=foo":     "storage.db",
		"file:my%20chat.db":               "my chat.db",
		":memory:":                        ":memory:",
		"/var/lib/chat/storage.db?mode=ro": "/var/lib/chat/storage.db",
	}
	for in, want := range tests {
		if got := migrationTarget(in); got != want {
			t.Errorf("migrationTarget(%q) = %q, want %q", in, got, want)
		}
	}
}
