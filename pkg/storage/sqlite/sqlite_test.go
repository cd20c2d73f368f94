package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rexliu/ksdk/pkg/core"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "journal.db"), Options{JournalMode: "wal", Synchronous: "normal"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return store
}

func TestStoreRecord(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	body := []byte(strings.Repeat(`{"objectType":"MediaEntry","id":"0_abc"}`, 50))
	first := core.CallRecord{
		ID:         core.NewTraceID(),
		URL:        "https://api.example.com/api_v3/service/media/action/get",
		Actions:    []string{"media.get"},
		Status:     200,
		DurationMS: 12,
		Body:       body,
		CreatedAt:  1700000000,
	}
	second := core.CallRecord{
		ID:      core.NewTraceID(),
		URL:     "https://api.example.com/api_v3/service/multirequest",
		Actions: []string{"media.get", "media.list"},
		Batch:   true,
		Error:   "RC : 500",
		Status:  500,
	}
	for _, rec := range []core.CallRecord{first, second} {
		if err := store.Record(ctx, rec); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	recent, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(recent))
	}
	if recent[0].ID != second.ID || !recent[0].Batch || recent[0].Error != "RC : 500" || len(recent[0].Actions) != 2 {
		t.Fatalf("unexpected newest entry %+v", recent[0])
	}
	if recent[1].Status != 200 || recent[1].Error != "" || recent[1].CreatedAt != 1700000000 {
		t.Fatalf("unexpected oldest entry %+v", recent[1])
	}
	if recent[0].CreatedAt == 0 {
		t.Fatal("expected created_at to be filled in")
	}

	got, err := store.Body(ctx, first.ID)
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	if string(got) != string(body) {
		t.Fatalf("expected body to round trip, got %d bytes", len(got))
	}
	if got, err := store.Body(ctx, second.ID); err != nil || got != nil {
		t.Fatalf("expected empty body, got %q %v", got, err)
	}
	if _, err := store.Body(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStorePrune(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	var ids []string
	for i := 0; i < 5; i++ {
		rec := core.CallRecord{URL: "u", Actions: []string{"media.get"}, ID: core.NewTraceID()}
		ids = append(ids, rec.ID)
		if err := store.Record(ctx, rec); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	removed, err := store.Prune(ctx, 2)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	recent, _ := store.Recent(ctx, 0)
	if len(recent) != 2 || recent[0].ID != ids[4] || recent[1].ID != ids[3] {
		t.Fatalf("unexpected survivors %+v", recent)
	}
}

func TestOpenRejectsPragmas(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "x.db"), Options{JournalMode: "WAL; DROP TABLE calls"}); err == nil {
		t.Fatal("expected bad journal mode to be rejected")
	}
	if _, err := Open(filepath.Join(t.TempDir(), "x.db"), Options{Synchronous: "sometimes"}); err == nil {
		t.Fatal("expected bad synchronous mode to be rejected")
	}
}
