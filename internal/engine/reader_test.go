package engine_test

import (
	"context"
	"fmt"
	"testing"

	"tempoline/internal/domain"
	"tempoline/internal/engine"
	"tempoline/internal/repo"
)

// countingStore counts child-collection queries to pin down the batched
// read pattern.
type countingStore struct {
	engine.Store
	taskQueries        int
	deliverableQueries int
}

func (s *countingStore) TasksByEngagementIDs(ctx context.Context, q repo.Querier, ids []int64) (map[int64][]domain.EngagementTask, error) {
	s.taskQueries++
	return s.Store.TasksByEngagementIDs(ctx, q, ids)
}

func (s *countingStore) DeliverablesByEngagementIDs(ctx context.Context, q repo.Querier, ids []int64) (map[int64][]domain.EngagementDeliverable, error) {
	s.deliverableQueries++
	return s.Store.DeliverablesByEngagementIDs(ctx, q, ids)
}

func TestListUsesConstantChildQueries(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 12; i++ {
		if _, err := env.Engine.Create(env.Ctx, engine.CreateOptions{
			ManagerID:      3,
			EngagementCode: fmt.Sprintf("ENG-%02d", i),
			EngagementName: fmt.Sprintf("Engagement %02d", i),
			Tasks:          []engine.TaskInput{{Label: fmt.Sprintf("Task %02d", i)}},
			Deliverables:   []engine.DeliverableInput{{Label: fmt.Sprintf("Deliverable %02d", i)}},
		}); err != nil {
			t.Fatal(err)
		}
	}
	counter := &countingStore{Store: env.Engine.Store}
	env.Engine.Store = counter

	items, err := env.Engine.List(env.Ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 12 {
		t.Fatalf("got %d engagements, want 12", len(items))
	}
	if counter.taskQueries != 1 || counter.deliverableQueries != 1 {
		t.Fatalf("child queries: %d task, %d deliverable, want 1 each", counter.taskQueries, counter.deliverableQueries)
	}
	for _, m := range items {
		if len(m.Tasks) != 1 || len(m.Deliverables) != 1 {
			t.Fatalf("children not attached: %+v", m)
		}
	}
}

func TestListEmptyManagerIsEmptySlice(t *testing.T) {
	env := newTestEnv(t)
	items, err := env.Engine.List(env.Ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("want empty slice, got %#v", items)
	}
}

func TestGetAttachesEmptyChildSlices(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.Engine.Create(env.Ctx, engine.CreateOptions{
		ManagerID:      1,
		EngagementCode: "ENG-1",
		EngagementName: "Audit",
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := env.Engine.Get(env.Ctx, 1, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Tasks == nil || got.Deliverables == nil {
		t.Fatalf("child slices must not be nil: %+v", got)
	}
}
