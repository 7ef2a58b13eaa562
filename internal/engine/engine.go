package engine

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tempoline/internal/catalog"
	"tempoline/internal/domain"
	"tempoline/internal/repo"
)

// Store is the persistence surface the engine writes and reads engagement
// aggregates through. repo.Repo satisfies it; tests substitute counting and
// fault-injecting doubles.
type Store interface {
	InsertManagerEngagement(ctx context.Context, q repo.Querier, m domain.ManagerEngagement) (int64, error)
	UpdateManagerEngagement(ctx context.Context, q repo.Querier, m domain.ManagerEngagement) error
	GetManagerEngagementRow(ctx context.Context, q repo.Querier, managerID, id int64) (domain.ManagerEngagement, error)
	ListManagerEngagementRows(ctx context.Context, q repo.Querier, managerID int64) ([]domain.ManagerEngagement, error)
	ListAllManagerEngagementRows(ctx context.Context, q repo.Querier) ([]repo.AllManagerEngagementRow, error)
	DeleteManagerEngagement(ctx context.Context, q repo.Querier, managerID, id int64) error
	DeleteEngagementTasks(ctx context.Context, q repo.Querier, engagementID int64) error
	DeleteEngagementDeliverables(ctx context.Context, q repo.Querier, engagementID int64) error
	InsertEngagementTask(ctx context.Context, q repo.Querier, t domain.EngagementTask) (int64, error)
	InsertEngagementDeliverable(ctx context.Context, q repo.Querier, d domain.EngagementDeliverable) (int64, error)
	TasksByEngagementIDs(ctx context.Context, q repo.Querier, ids []int64) (map[int64][]domain.EngagementTask, error)
	DeliverablesByEngagementIDs(ctx context.Context, q repo.Querier, ids []int64) (map[int64][]domain.EngagementDeliverable, error)
}

// Catalog resolves natural keys against the shared eligible catalogs inside
// the engine's transaction.
type Catalog interface {
	ResolveEngagement(ctx context.Context, q repo.Querier, code, name string) (domain.EligibleEngagement, error)
	ResolveTask(ctx context.Context, q repo.Querier, macroprocess, process, label string) (domain.EligibleTask, error)
	ResolveDeliverable(ctx context.Context, q repo.Querier, label string, periodicity domain.Periodicity) (domain.EligibleDeliverable, error)
}

// Engine owns manager-engagement aggregates: assignment roots plus their
// ordered task and deliverable children, scoped per manager.
type Engine struct {
	DB      *sql.DB
	Store   Store
	Catalog Catalog
	Now     func() time.Time
}

func New(db *sql.DB) *Engine {
	return &Engine{
		DB:      db,
		Store:   repo.Repo{DB: db},
		Catalog: catalog.New(db),
		Now:     time.Now,
	}
}

func (e *Engine) now() string {
	now := e.Now
	if now == nil {
		now = time.Now
	}
	return now().UTC().Format(time.RFC3339)
}

// TaskInput is one task child of an engagement write. A nil EligibleTaskID
// makes the engine resolve the label against the task catalog.
type TaskInput struct {
	Label          string `json:"label"`
	EligibleTaskID *int64 `json:"eligible_task_id,omitempty"`
}

// DeliverableInput is one deliverable child of an engagement write.
type DeliverableInput struct {
	Label                 string `json:"label"`
	EligibleDeliverableID *int64 `json:"eligible_deliverable_id,omitempty"`
}

// CreateOptions describes a full engagement aggregate to create for a
// manager. A nil EligibleEngagementID makes the engine resolve the code
// against the engagement catalog.
type CreateOptions struct {
	ManagerID            int64
	EngagementCode       string
	EngagementName       string
	EligibleEngagementID *int64
	Tasks                []TaskInput
	Deliverables         []DeliverableInput
}

// UpdateOptions rewrites an existing aggregate. Children replace the prior
// set wholesale.
type UpdateOptions struct {
	ID                   int64
	ManagerID            int64
	EngagementCode       string
	EngagementName       string
	EligibleEngagementID *int64
	Tasks                []TaskInput
	Deliverables         []DeliverableInput
}

func validateRoot(code, name string) error {
	if strings.TrimSpace(code) == "" {
		return &domain.ValidationError{Field: "engagement_code", Reason: "is required"}
	}
	if strings.TrimSpace(name) == "" {
		return &domain.ValidationError{Field: "engagement_name", Reason: "is required"}
	}
	return nil
}

// Create writes a new aggregate in one transaction: root insert, catalog
// link resolution, then children. Any failure rolls the whole aggregate
// back.
func (e *Engine) Create(ctx context.Context, opts CreateOptions) (domain.ManagerEngagement, error) {
	var zero domain.ManagerEngagement
	if err := validateRoot(opts.EngagementCode, opts.EngagementName); err != nil {
		return zero, err
	}
	code := strings.TrimSpace(opts.EngagementCode)
	name := strings.TrimSpace(opts.EngagementName)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return zero, err
	}
	defer tx.Rollback()

	linkID, err := e.resolveEngagementLink(ctx, tx, opts.EligibleEngagementID, code, name)
	if err != nil {
		return zero, err
	}
	now := e.now()
	root := domain.ManagerEngagement{
		ManagerID:            opts.ManagerID,
		EngagementCode:       code,
		EngagementName:       name,
		EligibleEngagementID: linkID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	id, err := e.Store.InsertManagerEngagement(ctx, tx, root)
	if err != nil {
		return zero, err
	}
	if err := e.replaceChildren(ctx, tx, id, opts.Tasks, opts.Deliverables); err != nil {
		return zero, err
	}
	out, err := e.readAggregate(ctx, tx, opts.ManagerID, id)
	if err != nil {
		return zero, err
	}
	if err := tx.Commit(); err != nil {
		return zero, err
	}
	logrus.WithFields(logrus.Fields{
		"engagement_id": out.ID,
		"manager_id":    out.ManagerID,
		"tasks":         len(out.Tasks),
		"deliverables":  len(out.Deliverables),
	}).Debug("engagement created")
	return out, nil
}

// Update rewrites an aggregate owned by the given manager. A root belonging
// to another manager reads as absent.
func (e *Engine) Update(ctx context.Context, opts UpdateOptions) (domain.ManagerEngagement, error) {
	var zero domain.ManagerEngagement
	if err := validateRoot(opts.EngagementCode, opts.EngagementName); err != nil {
		return zero, err
	}
	code := strings.TrimSpace(opts.EngagementCode)
	name := strings.TrimSpace(opts.EngagementName)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return zero, err
	}
	defer tx.Rollback()

	current, err := e.Store.GetManagerEngagementRow(ctx, tx, opts.ManagerID, opts.ID)
	if err != nil {
		return zero, err
	}
	linkID, err := e.resolveEngagementLink(ctx, tx, opts.EligibleEngagementID, code, name)
	if err != nil {
		return zero, err
	}
	current.EngagementCode = code
	current.EngagementName = name
	current.EligibleEngagementID = linkID
	current.UpdatedAt = e.now()
	if err := e.Store.UpdateManagerEngagement(ctx, tx, current); err != nil {
		return zero, err
	}
	if err := e.replaceChildren(ctx, tx, current.ID, opts.Tasks, opts.Deliverables); err != nil {
		return zero, err
	}
	out, err := e.readAggregate(ctx, tx, opts.ManagerID, current.ID)
	if err != nil {
		return zero, err
	}
	if err := tx.Commit(); err != nil {
		return zero, err
	}
	logrus.WithFields(logrus.Fields{
		"engagement_id": out.ID,
		"manager_id":    out.ManagerID,
		"tasks":         len(out.Tasks),
		"deliverables":  len(out.Deliverables),
	}).Debug("engagement rewritten")
	return out, nil
}

// Delete removes an aggregate and its children. Children go with the root
// via the cascading foreign keys.
func (e *Engine) Delete(ctx context.Context, managerID, id int64) error {
	if err := e.Store.DeleteManagerEngagement(ctx, e.DB, managerID, id); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"engagement_id": id,
		"manager_id":    managerID,
	}).Debug("engagement deleted")
	return nil
}

// resolveEngagementLink picks the eligible-engagement link for a root. An
// explicit id is trusted as given. Without one the code and name resolve
// against the catalog, creating the entry on first sight.
func (e *Engine) resolveEngagementLink(ctx context.Context, q repo.Querier, explicit *int64, code, name string) (*int64, error) {
	if explicit != nil {
		return explicit, nil
	}
	entry, err := e.Catalog.ResolveEngagement(ctx, q, code, name)
	if err != nil {
		return nil, err
	}
	return &entry.ID, nil
}

// replaceChildren swaps the child sets of a root inside the caller's
// transaction: delete everything, then reinsert the new lists in input
// order. Blank labels are dropped; children without an explicit catalog id
// resolve their label against the matching catalog.
func (e *Engine) replaceChildren(ctx context.Context, tx *sql.Tx, engagementID int64, tasks []TaskInput, deliverables []DeliverableInput) error {
	if err := e.Store.DeleteEngagementTasks(ctx, tx, engagementID); err != nil {
		return err
	}
	if err := e.Store.DeleteEngagementDeliverables(ctx, tx, engagementID); err != nil {
		return err
	}
	now := e.now()
	for _, in := range tasks {
		label := strings.TrimSpace(in.Label)
		if label == "" {
			continue
		}
		linkID := in.EligibleTaskID
		if linkID == nil {
			entry, err := e.Catalog.ResolveTask(ctx, tx, "", "", label)
			if err != nil {
				return err
			}
			linkID = &entry.ID
		}
		child := domain.EngagementTask{
			ManagerEngagementID: engagementID,
			Label:               label,
			EligibleTaskID:      linkID,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if _, err := e.Store.InsertEngagementTask(ctx, tx, child); err != nil {
			return err
		}
	}
	for _, in := range deliverables {
		label := strings.TrimSpace(in.Label)
		if label == "" {
			continue
		}
		linkID := in.EligibleDeliverableID
		if linkID == nil {
			entry, err := e.Catalog.ResolveDeliverable(ctx, tx, label, domain.PeriodicityNotApplicable)
			if err != nil {
				return err
			}
			linkID = &entry.ID
		}
		child := domain.EngagementDeliverable{
			ManagerEngagementID:   engagementID,
			Label:                 label,
			EligibleDeliverableID: linkID,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if _, err := e.Store.InsertEngagementDeliverable(ctx, tx, child); err != nil {
			return err
		}
	}
	return nil
}
