package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tempoline/internal/domain"
	"tempoline/internal/repo"
)

// DefaultSearchLimit caps catalog searches when the caller does not supply
// a limit.
const DefaultSearchLimit = 20

// Store is the eligible-catalog store: CRUD plus natural-key lookup over the
// three shared catalogs. Natural-key uniqueness is case-insensitive; display
// fields follow last-writer-wins on the resolve path.
type Store struct {
	DB   *sql.DB
	Repo repo.Repo
	Now  func() time.Time
	// SearchLimit caps searches when the caller passes no limit.
	SearchLimit int
}

func New(db *sql.DB) Store {
	return Store{DB: db, Repo: repo.Repo{DB: db}, Now: time.Now, SearchLimit: DefaultSearchLimit}
}

func (s Store) limit(limit int) int {
	if limit > 0 {
		return limit
	}
	if s.SearchLimit > 0 {
		return s.SearchLimit
	}
	return DefaultSearchLimit
}

func (s Store) now() string {
	now := s.Now
	if now == nil {
		now = time.Now
	}
	return now().UTC().Format(time.RFC3339)
}

type EngagementInput struct {
	EngagementCode string `json:"engagement_code"`
	EngagementName string `json:"engagement_name"`
}

type TaskInput struct {
	Macroprocess string `json:"macroprocess"`
	Process      string `json:"process"`
	Label        string `json:"label"`
}

type DeliverableInput struct {
	Label       string `json:"label"`
	Periodicity string `json:"periodicity"`
}

func (s Store) CreateEngagement(ctx context.Context, in EngagementInput) (domain.EligibleEngagement, error) {
	var zero domain.EligibleEngagement
	code := normText(in.EngagementCode)
	name := normText(in.EngagementName)
	if code == "" {
		return zero, &domain.ValidationError{Field: "engagement_code", Reason: "is required"}
	}
	if name == "" {
		return zero, &domain.ValidationError{Field: "engagement_name", Reason: "is required"}
	}
	if _, err := s.Repo.GetEligibleEngagementByCode(ctx, s.DB, code); err == nil {
		return zero, fmt.Errorf("engagement code %s: %w", code, repo.ErrDuplicate)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return zero, err
	}
	now := s.now()
	entry := domain.EligibleEngagement{EngagementCode: code, EngagementName: name, CreatedAt: now, UpdatedAt: now}
	id, err := s.Repo.InsertEligibleEngagement(ctx, s.DB, entry)
	if err != nil {
		return zero, err
	}
	entry.ID = id
	return entry, nil
}

func (s Store) UpdateEngagement(ctx context.Context, id int64, in EngagementInput) (domain.EligibleEngagement, error) {
	var zero domain.EligibleEngagement
	code := normText(in.EngagementCode)
	name := normText(in.EngagementName)
	if code == "" {
		return zero, &domain.ValidationError{Field: "engagement_code", Reason: "is required"}
	}
	if name == "" {
		return zero, &domain.ValidationError{Field: "engagement_name", Reason: "is required"}
	}
	current, err := s.Repo.GetEligibleEngagement(ctx, s.DB, id)
	if err != nil {
		return zero, err
	}
	if normKey(code) != normKey(current.EngagementCode) {
		if _, err := s.Repo.GetEligibleEngagementByCode(ctx, s.DB, code); err == nil {
			return zero, fmt.Errorf("engagement code %s: %w", code, repo.ErrDuplicate)
		} else if !errors.Is(err, repo.ErrNotFound) {
			return zero, err
		}
	}
	current.EngagementCode = code
	current.EngagementName = name
	current.UpdatedAt = s.now()
	if err := s.Repo.UpdateEligibleEngagement(ctx, s.DB, current); err != nil {
		return zero, err
	}
	return current, nil
}

func (s Store) DeleteEngagement(ctx context.Context, id int64) error {
	return s.Repo.DeleteEligibleEngagement(ctx, s.DB, id)
}

func (s Store) SearchEngagements(ctx context.Context, query string, limit int) ([]domain.EligibleEngagement, error) {
	return s.Repo.SearchEligibleEngagements(ctx, s.DB, normText(query), s.limit(limit))
}

func (s Store) ListEngagements(ctx context.Context) ([]domain.EligibleEngagement, error) {
	return s.Repo.ListEligibleEngagements(ctx, s.DB)
}

// ResolveEngagement is the implicit-catalog path: insert-if-absent by code,
// then refresh the display name to the latest value seen. Runs on the
// caller's transaction scope.
func (s Store) ResolveEngagement(ctx context.Context, q repo.Querier, code, name string) (domain.EligibleEngagement, error) {
	var zero domain.EligibleEngagement
	code = normText(code)
	name = normText(name)
	if code == "" {
		return zero, &domain.ValidationError{Field: "engagement_code", Reason: "is required"}
	}
	if name == "" {
		return zero, &domain.ValidationError{Field: "engagement_name", Reason: "is required"}
	}
	if err := s.Repo.UpsertEligibleEngagement(ctx, q, code, name, s.now()); err != nil {
		return zero, err
	}
	return s.Repo.GetEligibleEngagementByCode(ctx, q, code)
}

func (s Store) CreateTask(ctx context.Context, in TaskInput) (domain.EligibleTask, error) {
	var zero domain.EligibleTask
	macroprocess := normText(in.Macroprocess)
	process := normText(in.Process)
	label := normText(in.Label)
	if macroprocess == "" {
		return zero, &domain.ValidationError{Field: "macroprocess", Reason: "is required"}
	}
	if process == "" {
		return zero, &domain.ValidationError{Field: "process", Reason: "is required"}
	}
	if label == "" {
		return zero, &domain.ValidationError{Field: "label", Reason: "is required"}
	}
	if _, err := s.Repo.GetEligibleTaskByKey(ctx, s.DB, macroprocess, process, label); err == nil {
		return zero, fmt.Errorf("task %s > %s > %s: %w", macroprocess, process, label, repo.ErrDuplicate)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return zero, err
	}
	now := s.now()
	entry := domain.EligibleTask{Macroprocess: macroprocess, Process: process, Label: label, CreatedAt: now, UpdatedAt: now}
	id, err := s.Repo.InsertEligibleTask(ctx, s.DB, entry)
	if err != nil {
		return zero, err
	}
	entry.ID = id
	return entry, nil
}

func (s Store) UpdateTask(ctx context.Context, id int64, in TaskInput) (domain.EligibleTask, error) {
	var zero domain.EligibleTask
	macroprocess := normText(in.Macroprocess)
	process := normText(in.Process)
	label := normText(in.Label)
	if macroprocess == "" {
		return zero, &domain.ValidationError{Field: "macroprocess", Reason: "is required"}
	}
	if process == "" {
		return zero, &domain.ValidationError{Field: "process", Reason: "is required"}
	}
	if label == "" {
		return zero, &domain.ValidationError{Field: "label", Reason: "is required"}
	}
	current, err := s.Repo.GetEligibleTask(ctx, s.DB, id)
	if err != nil {
		return zero, err
	}
	keyChanged := normKey(macroprocess) != normKey(current.Macroprocess) ||
		normKey(process) != normKey(current.Process) ||
		normKey(label) != normKey(current.Label)
	if keyChanged {
		if _, err := s.Repo.GetEligibleTaskByKey(ctx, s.DB, macroprocess, process, label); err == nil {
			return zero, fmt.Errorf("task %s > %s > %s: %w", macroprocess, process, label, repo.ErrDuplicate)
		} else if !errors.Is(err, repo.ErrNotFound) {
			return zero, err
		}
	}
	current.Macroprocess = macroprocess
	current.Process = process
	current.Label = label
	current.UpdatedAt = s.now()
	if err := s.Repo.UpdateEligibleTask(ctx, s.DB, current); err != nil {
		return zero, err
	}
	return current, nil
}

func (s Store) DeleteTask(ctx context.Context, id int64) error {
	return s.Repo.DeleteEligibleTask(ctx, s.DB, id)
}

func (s Store) SearchTasks(ctx context.Context, query string, limit int) ([]domain.EligibleTask, error) {
	return s.Repo.SearchEligibleTasks(ctx, s.DB, normText(query), s.limit(limit))
}

func (s Store) ListTasks(ctx context.Context) ([]domain.EligibleTask, error) {
	return s.Repo.ListEligibleTasks(ctx, s.DB)
}

// ResolveTask inserts the triple if absent and returns the matched entry.
// Free-text assignment labels arrive here with empty macroprocess and
// process components.
func (s Store) ResolveTask(ctx context.Context, q repo.Querier, macroprocess, process, label string) (domain.EligibleTask, error) {
	var zero domain.EligibleTask
	macroprocess = normText(macroprocess)
	process = normText(process)
	label = normText(label)
	if label == "" {
		return zero, &domain.ValidationError{Field: "label", Reason: "is required"}
	}
	if err := s.Repo.UpsertEligibleTask(ctx, q, macroprocess, process, label, s.now()); err != nil {
		return zero, err
	}
	return s.Repo.GetEligibleTaskByKey(ctx, q, macroprocess, process, label)
}

func (s Store) CreateDeliverable(ctx context.Context, in DeliverableInput) (domain.EligibleDeliverable, error) {
	var zero domain.EligibleDeliverable
	label := normText(in.Label)
	if label == "" {
		return zero, &domain.ValidationError{Field: "label", Reason: "is required"}
	}
	periodicity, vErr := parsePeriodicity(in.Periodicity)
	if vErr != nil {
		return zero, vErr
	}
	if _, err := s.Repo.GetEligibleDeliverableByKey(ctx, s.DB, label, periodicity); err == nil {
		return zero, fmt.Errorf("deliverable %s (%s): %w", label, periodicity, repo.ErrDuplicate)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return zero, err
	}
	now := s.now()
	entry := domain.EligibleDeliverable{Label: label, Periodicity: periodicity, CreatedAt: now, UpdatedAt: now}
	id, err := s.Repo.InsertEligibleDeliverable(ctx, s.DB, entry)
	if err != nil {
		return zero, err
	}
	entry.ID = id
	return entry, nil
}

func (s Store) UpdateDeliverable(ctx context.Context, id int64, in DeliverableInput) (domain.EligibleDeliverable, error) {
	var zero domain.EligibleDeliverable
	label := normText(in.Label)
	if label == "" {
		return zero, &domain.ValidationError{Field: "label", Reason: "is required"}
	}
	periodicity, vErr := parsePeriodicity(in.Periodicity)
	if vErr != nil {
		return zero, vErr
	}
	current, err := s.Repo.GetEligibleDeliverable(ctx, s.DB, id)
	if err != nil {
		return zero, err
	}
	keyChanged := normKey(label) != normKey(current.Label) || periodicity != current.Periodicity
	if keyChanged {
		if _, err := s.Repo.GetEligibleDeliverableByKey(ctx, s.DB, label, periodicity); err == nil {
			return zero, fmt.Errorf("deliverable %s (%s): %w", label, periodicity, repo.ErrDuplicate)
		} else if !errors.Is(err, repo.ErrNotFound) {
			return zero, err
		}
	}
	current.Label = label
	current.Periodicity = periodicity
	current.UpdatedAt = s.now()
	if err := s.Repo.UpdateEligibleDeliverable(ctx, s.DB, current); err != nil {
		return zero, err
	}
	return current, nil
}

func (s Store) DeleteDeliverable(ctx context.Context, id int64) error {
	return s.Repo.DeleteEligibleDeliverable(ctx, s.DB, id)
}

func (s Store) SearchDeliverables(ctx context.Context, query string, limit int) ([]domain.EligibleDeliverable, error) {
	return s.Repo.SearchEligibleDeliverables(ctx, s.DB, normText(query), s.limit(limit))
}

func (s Store) ListDeliverables(ctx context.Context) ([]domain.EligibleDeliverable, error) {
	return s.Repo.ListEligibleDeliverables(ctx, s.DB)
}

// ResolveDeliverable inserts the (label, periodicity) pair if absent and
// returns the matched entry.
func (s Store) ResolveDeliverable(ctx context.Context, q repo.Querier, label string, periodicity domain.Periodicity) (domain.EligibleDeliverable, error) {
	var zero domain.EligibleDeliverable
	label = normText(label)
	if label == "" {
		return zero, &domain.ValidationError{Field: "label", Reason: "is required"}
	}
	if !periodicity.Valid() {
		return zero, &domain.ValidationError{Field: "periodicity", Reason: fmt.Sprintf("%q is not a valid periodicity", periodicity)}
	}
	if err := s.Repo.UpsertEligibleDeliverable(ctx, q, label, periodicity, s.now()); err != nil {
		return zero, err
	}
	return s.Repo.GetEligibleDeliverableByKey(ctx, q, label, periodicity)
}

// parsePeriodicity folds the empty string to not_applicable and rejects
// anything outside the closed set.
func parsePeriodicity(raw string) (domain.Periodicity, error) {
	value := normKey(raw)
	if value == "" {
		return domain.PeriodicityNotApplicable, nil
	}
	p := domain.Periodicity(value)
	if !p.Valid() {
		return "", &domain.ValidationError{Field: "periodicity", Reason: fmt.Sprintf("%q is not a valid periodicity", raw)}
	}
	return p, nil
}
