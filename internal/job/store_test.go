package job

import (
	"testing"
)

func addWaiting(s *Store, name string) *Job {
	j := New(KindCompress, name, "sources/"+name, 100, "balanced", EncodeSettings{})
	s.Add(j)
	return j
}

func TestStore_AddAndGet(t *testing.T) {
	store := NewStore()
	j := addWaiting(store, "a.mp4")

	got, ok := store.Get(j.ID)
	if !ok {
		t.Fatal("expected job to exist")
	}
	if got.ID != j.ID {
		t.Errorf("expected %s, got %s", j.ID, got.ID)
	}
}

func TestStore_GetNotFound(t *testing.T) {
	store := NewStore()

	if _, ok := store.Get("nonexistent"); ok {
		t.Error("expected job not found")
	}
}

func TestStore_ListPreservesOrder(t *testing.T) {
	store := NewStore()
	j1 := addWaiting(store, "a.mp4")
	j2 := addWaiting(store, "b.mp4")

	jobs := store.List("")
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != j1.ID || jobs[1].ID != j2.ID {
		t.Error("expected FIFO order")
	}
}

func TestStore_ListFiltersByStatus(t *testing.T) {
	store := NewStore()
	j1 := addWaiting(store, "a.mp4")
	addWaiting(store, "b.mp4")

	store.MarkProcessing(j1.ID)

	waiting := store.List(StatusWaiting)
	if len(waiting) != 1 {
		t.Errorf("expected 1 waiting, got %d", len(waiting))
	}
	processing := store.List(StatusProcessing)
	if len(processing) != 1 {
		t.Errorf("expected 1 processing, got %d", len(processing))
	}
}

func TestStore_MarkProcessingSetsStartTime(t *testing.T) {
	store := NewStore()
	j := addWaiting(store, "a.mp4")

	got, err := store.MarkProcessing(j.ID)
	if err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if got.Status != StatusProcessing {
		t.Errorf("expected processing, got %s", got.Status)
	}
	if got.StartTime == nil {
		t.Error("expected start time")
	}
}

func TestStore_ProgressIgnoredUnlessProcessing(t *testing.T) {
	store := NewStore()
	j := addWaiting(store, "a.mp4")

	if _, applied := store.SetProgress(j.ID, 50); applied {
		t.Error("expected tick dropped for waiting job")
	}

	store.MarkProcessing(j.ID)
	got, applied := store.SetProgress(j.ID, 50)
	if !applied {
		t.Fatal("expected tick applied")
	}
	if got.Progress != 50 {
		t.Errorf("expected 50, got %f", got.Progress)
	}

	// Stale callback after cancel must not resurrect the job.
	store.MarkCancelled(j.ID)
	if _, applied := store.SetProgress(j.ID, 80); applied {
		t.Error("expected tick dropped after cancel")
	}
	got, _ = store.Get(j.ID)
	if got.Progress != 50 {
		t.Errorf("expected progress unchanged, got %f", got.Progress)
	}
}

func TestStore_Complete(t *testing.T) {
	store := NewStore()
	j := addWaiting(store, "a.mp4")
	store.MarkProcessing(j.ID)

	got, err := store.MarkCompleted(j.ID, "outputs/a.mp4", 40)
	if err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if got.Progress != 100 {
		t.Errorf("expected progress 100, got %f", got.Progress)
	}
	if got.OutputSize != 40 || got.OutputPath == "" {
		t.Error("expected output recorded")
	}
	if got.Ratio != 0.6 {
		t.Errorf("expected ratio 0.6, got %f", got.Ratio)
	}
	if got.EndTime == nil {
		t.Error("expected end time")
	}
}

func TestStore_CancelWaitingHasNoStartTime(t *testing.T) {
	store := NewStore()
	j := addWaiting(store, "a.mp4")

	got, err := store.MarkCancelled(j.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
	if got.StartTime != nil {
		t.Error("expected no start time")
	}
}

func TestStore_CancelTerminalRejected(t *testing.T) {
	store := NewStore()
	j := addWaiting(store, "a.mp4")
	store.MarkProcessing(j.ID)
	store.MarkCompleted(j.ID, "outputs/a.mp4", 40)

	if _, err := store.MarkCancelled(j.ID); err == nil {
		t.Error("expected cancel of completed job to fail")
	}
}

func TestStore_FailThenRetry(t *testing.T) {
	store := NewStore()
	j := addWaiting(store, "a.mp4")
	store.MarkProcessing(j.ID)
	store.SetProgress(j.ID, 60)

	got, err := store.MarkFailed(j.ID, "encoder crashed")
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if got.Error != "encoder crashed" {
		t.Errorf("expected error recorded, got %q", got.Error)
	}

	got, err = store.ResetForRetry(j.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got.Status != StatusWaiting {
		t.Errorf("expected waiting, got %s", got.Status)
	}
	if got.Progress != 0 {
		t.Errorf("expected progress reset, got %f", got.Progress)
	}
	if got.Error != "" {
		t.Errorf("expected error cleared, got %q", got.Error)
	}
	if got.StartTime != nil || got.EndTime != nil {
		t.Error("expected timestamps cleared")
	}
}

func TestStore_RetryOnlyFromError(t *testing.T) {
	store := NewStore()
	j := addWaiting(store, "a.mp4")

	if _, err := store.ResetForRetry(j.ID); err == nil {
		t.Error("expected retry of waiting job to fail")
	}
}

func TestStore_ClearFinished(t *testing.T) {
	store := NewStore()
	j1 := addWaiting(store, "a.mp4")
	j2 := addWaiting(store, "b.mp4")
	addWaiting(store, "c.mp4")

	store.MarkProcessing(j1.ID)
	store.MarkCompleted(j1.ID, "outputs/a.mp4", 40)
	store.MarkCancelled(j2.ID)

	removed := store.ClearFinished()
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed, got %d", len(removed))
	}
	if removed[0].ID != j1.ID || removed[1].ID != j2.ID {
		t.Error("expected removed snapshots in enqueue order")
	}
	if jobs := store.List(""); len(jobs) != 1 {
		t.Errorf("expected 1 job left, got %d", len(jobs))
	}
}

func TestStore_TerminalFailureCapsProgress(t *testing.T) {
	store := NewStore()
	j := addWaiting(store, "a.mp4")

	store.MarkProcessing(j.ID)
	store.SetProgress(j.ID, 100)

	failed, err := store.MarkFailed(j.ID, "encode failed: partial write")
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if failed.Progress >= 100 {
		t.Errorf("errored job shows progress %v, want < 100", failed.Progress)
	}
}

func TestStore_CancelCapsProgress(t *testing.T) {
	store := NewStore()
	j := addWaiting(store, "a.mp4")

	store.MarkProcessing(j.ID)
	store.SetProgress(j.ID, 100)

	cancelled, err := store.MarkCancelled(j.ID)
	if err != nil {
		t.Fatalf("mark cancelled: %v", err)
	}
	if cancelled.Progress >= 100 {
		t.Errorf("cancelled job shows progress %v, want < 100", cancelled.Progress)
	}
}
