package engine

import (
	"context"

	"tempoline/internal/domain"
	"tempoline/internal/repo"
)

// Get loads one aggregate with its children, scoped to the manager.
func (e *Engine) Get(ctx context.Context, managerID, id int64) (domain.ManagerEngagement, error) {
	var zero domain.ManagerEngagement
	root, err := e.Store.GetManagerEngagementRow(ctx, e.DB, managerID, id)
	if err != nil {
		return zero, err
	}
	roots := []domain.ManagerEngagement{root}
	if err := e.attachChildren(ctx, e.DB, roots); err != nil {
		return zero, err
	}
	return roots[0], nil
}

// List loads every aggregate of one manager, children included, with a
// constant number of queries regardless of how many roots there are.
func (e *Engine) List(ctx context.Context, managerID int64) ([]domain.ManagerEngagement, error) {
	roots, err := e.Store.ListManagerEngagementRows(ctx, e.DB, managerID)
	if err != nil {
		return nil, err
	}
	if roots == nil {
		roots = []domain.ManagerEngagement{}
	}
	if err := e.attachChildren(ctx, e.DB, roots); err != nil {
		return nil, err
	}
	return roots, nil
}

// ListAllGrouped loads every manager's aggregates grouped per manager, for
// administrative views. Managers keep the repository's name ordering and
// engagements keep their per-manager ordering.
func (e *Engine) ListAllGrouped(ctx context.Context) ([]domain.ManagerGroup, error) {
	rows, err := e.Store.ListAllManagerEngagementRows(ctx, e.DB)
	if err != nil {
		return nil, err
	}
	roots := make([]domain.ManagerEngagement, len(rows))
	for i, row := range rows {
		roots[i] = row.Root
	}
	if err := e.attachChildren(ctx, e.DB, roots); err != nil {
		return nil, err
	}
	groups := []domain.ManagerGroup{}
	index := map[int64]int{}
	for i, row := range rows {
		at, ok := index[row.Manager.ID]
		if !ok {
			at = len(groups)
			index[row.Manager.ID] = at
			groups = append(groups, domain.ManagerGroup{Manager: row.Manager, Engagements: []domain.ManagerEngagement{}})
		}
		groups[at].Engagements = append(groups[at].Engagements, roots[i])
	}
	return groups, nil
}

// attachChildren fills Tasks and Deliverables for a slice of roots using one
// batched query per child table. Roots with no children get empty slices,
// never nil.
func (e *Engine) attachChildren(ctx context.Context, q repo.Querier, roots []domain.ManagerEngagement) error {
	if len(roots) == 0 {
		return nil
	}
	ids := make([]int64, len(roots))
	for i := range roots {
		ids[i] = roots[i].ID
	}
	tasks, err := e.Store.TasksByEngagementIDs(ctx, q, ids)
	if err != nil {
		return err
	}
	deliverables, err := e.Store.DeliverablesByEngagementIDs(ctx, q, ids)
	if err != nil {
		return err
	}
	for i := range roots {
		roots[i].Tasks = tasks[roots[i].ID]
		if roots[i].Tasks == nil {
			roots[i].Tasks = []domain.EngagementTask{}
		}
		roots[i].Deliverables = deliverables[roots[i].ID]
		if roots[i].Deliverables == nil {
			roots[i].Deliverables = []domain.EngagementDeliverable{}
		}
	}
	return nil
}

// readAggregate is the post-write read inside a transaction: the value a
// write returns is exactly what a subsequent Get would see.
func (e *Engine) readAggregate(ctx context.Context, q repo.Querier, managerID, id int64) (domain.ManagerEngagement, error) {
	var zero domain.ManagerEngagement
	root, err := e.Store.GetManagerEngagementRow(ctx, q, managerID, id)
	if err != nil {
		return zero, err
	}
	roots := []domain.ManagerEngagement{root}
	if err := e.attachChildren(ctx, q, roots); err != nil {
		return zero, err
	}
	return roots[0], nil
}
