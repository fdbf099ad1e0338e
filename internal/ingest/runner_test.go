package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/seenimoa/tickersent/internal/store"
	"github.com/seenimoa/tickersent/pkg/models"
)

func TestRunnerTriggerAndWait(t *testing.T) {
	cfg := testConfig(t)
	src := &fakeSource{rows: []models.RemoteArticle{remote("Slow", "AAA", 0)}}
	entered := make(chan struct{})
	release := make(chan struct{})
	f := newFakeFetcher()
	f.hook = func(_ context.Context, _ string, n int) {
		if n == 1 {
			close(entered)
			<-release
		}
	}
	s, _ := newTestSyncer(t, cfg, src, f, nil)
	r := NewRunner(s)

	if rep, err := r.Last(); rep != nil || err != nil {
		t.Fatalf("Last before any run = %v, %v", rep, err)
	}
	if err := r.Trigger(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-entered
	if !r.Running() {
		t.Error("Running() = false during sync")
	}
	if err := r.Trigger(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("second Trigger err = %v", err)
	}
	if _, err := r.RunNow(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("RunNow during sync err = %v", err)
	}

	close(release)
	r.Wait()
	if r.Running() {
		t.Error("Running() = true after Wait")
	}
	rep, err := r.Last()
	if err != nil {
		t.Fatal(err)
	}
	if rep == nil || rep.Appended != 1 || rep.Status != store.StatusCompleted {
		t.Fatalf("last report = %+v", rep)
	}
}

func TestRunnerRunNow(t *testing.T) {
	cfg := testConfig(t)
	src := &fakeSource{rows: []models.RemoteArticle{remote("Fast", "AAA", 0)}}
	s, _ := newTestSyncer(t, cfg, src, newFakeFetcher(), nil)
	r := NewRunner(s)

	rep, err := r.RunNow(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Appended != 1 {
		t.Fatalf("report = %+v", rep)
	}
	// A no-op run replaces the last report.
	rep, err = r.RunNow(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	last, _ := r.Last()
	if last != rep || last.Status != store.StatusNoOp {
		t.Errorf("last = %+v", last)
	}
	r.Wait()
}

func TestRunnerKeepsLastReportOnError(t *testing.T) {
	cfg := testConfig(t)
	src := &fakeSource{rows: []models.RemoteArticle{remote("Fast", "AAA", 0)}}
	s, _ := newTestSyncer(t, cfg, src, newFakeFetcher(), nil)
	r := NewRunner(s)

	first, err := r.RunNow(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	src.mu.Lock()
	src.err = errors.New("provider down")
	src.mu.Unlock()
	if _, err := r.RunNow(context.Background()); err == nil {
		t.Fatal("want error")
	}
	last, lastErr := r.Last()
	if last != first || lastErr == nil {
		t.Errorf("Last = %+v, %v", last, lastErr)
	}
}

func TestRunnerStopBeforeSyncStarts(t *testing.T) {
	cfg := testConfig(t)
	src := &fakeSource{
		rows: []models.RemoteArticle{
			remote("One", "AAA", 0),
			remote("Two", "AAA", 1),
			remote("Three", "AAA", 2),
		},
		gate: make(chan struct{}),
	}
	s, ns := newTestSyncer(t, cfg, src, newFakeFetcher(), nil)
	r := NewRunner(s)

	if r.Stop() {
		t.Error("Stop() = true with no sync running")
	}
	if err := r.Trigger(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !r.Stop() {
		t.Fatal("Stop() = false right after Trigger")
	}
	close(src.gate)
	r.Wait()

	rep, err := r.Last()
	if err != nil {
		t.Fatal(err)
	}
	if rep.Status != store.StatusStopped || rep.Appended != 0 {
		t.Fatalf("report = %+v", rep)
	}
	if rows, _ := ns.All(context.Background()); len(rows) != 0 {
		t.Errorf("stopped sync stored %d rows", len(rows))
	}

	// The stop request does not leak into the next run.
	rep, err = r.RunNow(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Status != store.StatusCompleted || rep.Appended != 3 {
		t.Fatalf("next run = %+v", rep)
	}
}
