package engine_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"tempoline/internal/db"
	"tempoline/internal/domain"
	"tempoline/internal/engine"
	"tempoline/internal/migrate"
	"tempoline/internal/repo"
)

type testEnv struct {
	Engine *engine.Engine
	Repo   repo.Repo
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn)
	eng.Now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Repo: repo.Repo{DB: conn}, Ctx: context.Background()}
}

func int64Ptr(v int64) *int64 { return &v }

func TestCreateThenGetRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.Engine.Create(env.Ctx, engine.CreateOptions{
		ManagerID:      7,
		EngagementCode: "ENG-9",
		EngagementName: "Quarterly audit",
		Tasks: []engine.TaskInput{
			{Label: "Planning"},
			{Label: "Fieldwork"},
		},
		Deliverables: []engine.DeliverableInput{
			{Label: "Audit report"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ManagerID != 7 || created.EngagementCode != "ENG-9" {
		t.Fatalf("root: %+v", created)
	}
	if created.EligibleEngagementID == nil {
		t.Fatalf("expected implicit catalog link")
	}
	if len(created.Tasks) != 2 || created.Tasks[0].Label != "Planning" || created.Tasks[1].Label != "Fieldwork" {
		t.Fatalf("tasks: %+v", created.Tasks)
	}
	if created.Tasks[0].EligibleTaskID == nil {
		t.Fatalf("expected implicit task link")
	}
	if len(created.Deliverables) != 1 || created.Deliverables[0].Label != "Audit report" {
		t.Fatalf("deliverables: %+v", created.Deliverables)
	}

	got, err := env.Engine.Get(env.Ctx, 7, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(created, got) {
		t.Fatalf("create returned\n%+v\nbut get returned\n%+v", created, got)
	}
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.Create(env.Ctx, engine.CreateOptions{ManagerID: 1, EngagementCode: " ", EngagementName: "x"})
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "engagement_code" {
		t.Fatalf("expected engagement_code validation error, got %v", err)
	}
	_, err = env.Engine.Create(env.Ctx, engine.CreateOptions{ManagerID: 1, EngagementCode: "ENG-1", EngagementName: ""})
	if !errors.As(err, &vErr) || vErr.Field != "engagement_name" {
		t.Fatalf("expected engagement_name validation error, got %v", err)
	}
}

func TestBlankChildLabelsAreDropped(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.Engine.Create(env.Ctx, engine.CreateOptions{
		ManagerID:      1,
		EngagementCode: "ENG-1",
		EngagementName: "Audit",
		Tasks:          []engine.TaskInput{{Label: "  "}, {Label: "Real"}},
		Deliverables:   []engine.DeliverableInput{{Label: ""}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(created.Tasks) != 1 || created.Tasks[0].Label != "Real" {
		t.Fatalf("tasks: %+v", created.Tasks)
	}
	if len(created.Deliverables) != 0 {
		t.Fatalf("deliverables: %+v", created.Deliverables)
	}
}

func TestUpdateReplacesChildrenAsSet(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.Engine.Create(env.Ctx, engine.CreateOptions{
		ManagerID:      1,
		EngagementCode: "ENG-1",
		EngagementName: "Audit",
		Tasks:          []engine.TaskInput{{Label: "A"}, {Label: "B"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	updated, err := env.Engine.Update(env.Ctx, engine.UpdateOptions{
		ID:             created.ID,
		ManagerID:      1,
		EngagementCode: "ENG-1",
		EngagementName: "Audit",
		Tasks:          []engine.TaskInput{{Label: "C"}},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated.Tasks) != 1 || updated.Tasks[0].Label != "C" {
		t.Fatalf("tasks after replace: %+v", updated.Tasks)
	}
	if len(updated.Deliverables) != 0 {
		t.Fatalf("deliverables after replace: %+v", updated.Deliverables)
	}
}

func TestManagerScopeIsolation(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.Engine.Create(env.Ctx, engine.CreateOptions{
		ManagerID:      1,
		EngagementCode: "ENG-1",
		EngagementName: "Audit",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Get(env.Ctx, 2, created.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("cross-manager get: %v", err)
	}
	_, err = env.Engine.Update(env.Ctx, engine.UpdateOptions{ID: created.ID, ManagerID: 2, EngagementCode: "X", EngagementName: "Y"})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("cross-manager update: %v", err)
	}
	if err := env.Engine.Delete(env.Ctx, 2, created.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("cross-manager delete: %v", err)
	}
	// still present for the owner
	if _, err := env.Engine.Get(env.Ctx, 1, created.ID); err != nil {
		t.Fatalf("owner get after failed delete: %v", err)
	}
}

func TestDeleteCascadesChildren(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.Engine.Create(env.Ctx, engine.CreateOptions{
		ManagerID:      1,
		EngagementCode: "ENG-1",
		EngagementName: "Audit",
		Tasks:          []engine.TaskInput{{Label: "A"}},
		Deliverables:   []engine.DeliverableInput{{Label: "Report"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.Delete(env.Ctx, 1, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	tasks, err := env.Repo.TasksByEngagementIDs(env.Ctx, env.Repo.DB, []int64{created.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks[created.ID]) != 0 {
		t.Fatalf("orphaned tasks: %+v", tasks)
	}
}

func TestExplicitChildIDsAreTrusted(t *testing.T) {
	env := newTestEnv(t)
	// a dangling id is stored as given, no catalog entry is created
	created, err := env.Engine.Create(env.Ctx, engine.CreateOptions{
		ManagerID:            1,
		EngagementCode:       "ENG-1",
		EngagementName:       "Audit",
		EligibleEngagementID: int64Ptr(424242),
		Tasks:                []engine.TaskInput{{Label: "A", EligibleTaskID: int64Ptr(99)}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if created.EligibleEngagementID == nil || *created.EligibleEngagementID != 424242 {
		t.Fatalf("root link: %+v", created.EligibleEngagementID)
	}
	if created.Tasks[0].EligibleTaskID == nil || *created.Tasks[0].EligibleTaskID != 99 {
		t.Fatalf("task link: %+v", created.Tasks[0].EligibleTaskID)
	}
	entries, err := env.Repo.ListEligibleEngagements(env.Ctx, env.Repo.DB)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("unexpected catalog entries: %+v", entries)
	}
}

func TestDeliverablePeriodicityResolution(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.Engine.Create(env.Ctx, engine.CreateOptions{
		ManagerID:      1,
		EngagementCode: "ENG-1",
		EngagementName: "Audit",
		Deliverables: []engine.DeliverableInput{
			{Label: "Free-text memo"},
			{Label: "Dangling", EligibleDeliverableID: int64Ptr(5000)},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	// resolved deliverables read back their catalog periodicity
	if created.Deliverables[0].Periodicity == nil || *created.Deliverables[0].Periodicity != domain.PeriodicityNotApplicable {
		t.Fatalf("resolved periodicity: %+v", created.Deliverables[0].Periodicity)
	}
	// a dangling link reads back with no periodicity
	if created.Deliverables[1].Periodicity != nil {
		t.Fatalf("dangling periodicity: %+v", created.Deliverables[1].Periodicity)
	}
}

// failingStore passes everything through to the real repository except one
// injected failure.
type failingStore struct {
	engine.Store
	deliverableErr error
}

func (s *failingStore) InsertEngagementDeliverable(ctx context.Context, q repo.Querier, d domain.EngagementDeliverable) (int64, error) {
	if s.deliverableErr != nil {
		return 0, s.deliverableErr
	}
	return s.Store.InsertEngagementDeliverable(ctx, q, d)
}

func TestUpdateFailureLeavesAggregateUntouched(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.Engine.Create(env.Ctx, engine.CreateOptions{
		ManagerID:      1,
		EngagementCode: "ENG-1",
		EngagementName: "Audit",
		Tasks:          []engine.TaskInput{{Label: "A"}, {Label: "B"}},
		Deliverables:   []engine.DeliverableInput{{Label: "Report"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("disk full")
	env.Engine.Store = &failingStore{Store: env.Repo, deliverableErr: boom}
	_, err = env.Engine.Update(env.Ctx, engine.UpdateOptions{
		ID:             created.ID,
		ManagerID:      1,
		EngagementCode: "ENG-2",
		EngagementName: "Changed",
		Tasks:          []engine.TaskInput{{Label: "C"}},
		Deliverables:   []engine.DeliverableInput{{Label: "Other"}},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}

	env.Engine.Store = env.Repo
	after, err := env.Engine.Get(env.Ctx, 1, created.ID)
	if err != nil {
		t.Fatalf("get after rollback: %v", err)
	}
	if !reflect.DeepEqual(created, after) {
		t.Fatalf("aggregate changed despite rollback:\nbefore %+v\nafter  %+v", created, after)
	}
}

func TestListAllGrouped(t *testing.T) {
	env := newTestEnv(t)
	now := "2026-01-01T00:00:00Z"
	alice, err := env.Repo.InsertUser(env.Ctx, env.Repo.DB, domain.User{Name: "Alice", Email: "alice@example.com", Rank: domain.RankManager, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatal(err)
	}
	bob, err := env.Repo.InsertUser(env.Ctx, env.Repo.DB, domain.User{Name: "Bob", Email: "bob@example.com", Rank: domain.RankManager, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatal(err)
	}
	for _, seed := range []struct {
		manager int64
		code    string
	}{
		{bob, "ENG-B"},
		{alice, "ENG-A1"},
		{alice, "ENG-A2"},
	} {
		if _, err := env.Engine.Create(env.Ctx, engine.CreateOptions{
			ManagerID:      seed.manager,
			EngagementCode: seed.code,
			EngagementName: "Work " + seed.code,
			Tasks:          []engine.TaskInput{{Label: "Task for " + seed.code}},
		}); err != nil {
			t.Fatal(err)
		}
	}
	groups, err := env.Engine.ListAllGrouped(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].Manager.Name != "Alice" || len(groups[0].Engagements) != 2 {
		t.Fatalf("first group: %+v", groups[0])
	}
	if groups[1].Manager.Name != "Bob" || len(groups[1].Engagements) != 1 {
		t.Fatalf("second group: %+v", groups[1])
	}
	if len(groups[0].Engagements[0].Tasks) != 1 {
		t.Fatalf("children missing from grouped listing")
	}
}
