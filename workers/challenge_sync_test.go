package workers

import (
	"context"
	"errors"
	"testing"
)

// The dedupe slot must stay held until the sync finishes. Releasing it first
// would let a second consumer pick up the same challenge mid-sync.
func TestHandleReleasesDedupeSlotAfterSync(t *testing.T) {
	var order []string
	w := &ChallengeSyncWorker{
		sync: func(ctx context.Context, id int64) error {
			order = append(order, "sync")
			return nil
		},
		release: func(ctx context.Context, item string) {
			order = append(order, "release")
		},
	}

	if err := w.handle(context.Background(), 7, "7"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(order) != 2 || order[0] != "sync" || order[1] != "release" {
		t.Fatalf("expected sync before release, got %v", order)
	}
}

func TestHandleReleasesSlotOnSyncError(t *testing.T) {
	boom := errors.New("gateway down")
	released := false
	w := &ChallengeSyncWorker{
		sync:    func(ctx context.Context, id int64) error { return boom },
		release: func(ctx context.Context, item string) { released = true },
	}

	if err := w.handle(context.Background(), 7, "7"); !errors.Is(err, boom) {
		t.Fatalf("expected sync error, got %v", err)
	}
	if !released {
		t.Fatal("dedupe slot was not released after a failed sync")
	}
}
