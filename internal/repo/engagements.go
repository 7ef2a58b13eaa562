package repo

import (
	"context"
	"database/sql"
	"strings"

	"tempoline/internal/domain"
)

func (r Repo) InsertManagerEngagement(ctx context.Context, q Querier, m domain.ManagerEngagement) (int64, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO manager_engagements(manager_id,engagement_code,engagement_name,eligible_engagement_id,created_at,updated_at)
		 VALUES (?,?,?,?,?,?)`,
		m.ManagerID, m.EngagementCode, m.EngagementName, nullableInt64Ptr(m.EligibleEngagementID), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateManagerEngagement overwrites the root scoped by manager_id, so a
// cross-manager id resolves to ErrNotFound like a missing row.
func (r Repo) UpdateManagerEngagement(ctx context.Context, q Querier, m domain.ManagerEngagement) error {
	res, err := q.ExecContext(ctx,
		`UPDATE manager_engagements SET engagement_code=?, engagement_name=?, eligible_engagement_id=?, updated_at=?
		 WHERE id=? AND manager_id=?`,
		m.EngagementCode, m.EngagementName, nullableInt64Ptr(m.EligibleEngagementID), m.UpdatedAt, m.ID, m.ManagerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetManagerEngagementRow(ctx context.Context, q Querier, managerID, id int64) (domain.ManagerEngagement, error) {
	var (
		m        domain.ManagerEngagement
		eligible sql.NullInt64
	)
	err := q.QueryRowContext(ctx,
		`SELECT id,manager_id,engagement_code,engagement_name,eligible_engagement_id,created_at,updated_at
		 FROM manager_engagements WHERE id=? AND manager_id=?`, id, managerID).
		Scan(&m.ID, &m.ManagerID, &m.EngagementCode, &m.EngagementName, &eligible, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	m.EligibleEngagementID = int64PtrFromNull(eligible)
	return m, nil
}

func (r Repo) ListManagerEngagementRows(ctx context.Context, q Querier, managerID int64) ([]domain.ManagerEngagement, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id,manager_id,engagement_code,engagement_name,eligible_engagement_id,created_at,updated_at
		 FROM manager_engagements WHERE manager_id=? ORDER BY engagement_name COLLATE NOCASE, id`, managerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectManagerEngagementRows(rows)
}

// AllManagerEngagementRow pairs a root with its owning manager for the
// admin-wide grouped listing.
type AllManagerEngagementRow struct {
	Root    domain.ManagerEngagement
	Manager domain.User
}

func (r Repo) ListAllManagerEngagementRows(ctx context.Context, q Querier) ([]AllManagerEngagementRow, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT me.id, me.manager_id, me.engagement_code, me.engagement_name, me.eligible_engagement_id,
		        me.created_at, me.updated_at,
		        u.id, u.name, u.email, u.rank, u.created_at, u.updated_at
		 FROM manager_engagements me
		 JOIN users u ON u.id = me.manager_id
		 ORDER BY u.name COLLATE NOCASE, me.engagement_name COLLATE NOCASE, me.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []AllManagerEngagementRow
	for rows.Next() {
		var (
			row      AllManagerEngagementRow
			eligible sql.NullInt64
		)
		if err := rows.Scan(
			&row.Root.ID, &row.Root.ManagerID, &row.Root.EngagementCode, &row.Root.EngagementName, &eligible,
			&row.Root.CreatedAt, &row.Root.UpdatedAt,
			&row.Manager.ID, &row.Manager.Name, &row.Manager.Email, &row.Manager.Rank,
			&row.Manager.CreatedAt, &row.Manager.UpdatedAt,
		); err != nil {
			return nil, err
		}
		row.Root.EligibleEngagementID = int64PtrFromNull(eligible)
		res = append(res, row)
	}
	return res, rows.Err()
}

func (r Repo) DeleteManagerEngagement(ctx context.Context, q Querier, managerID, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM manager_engagements WHERE id=? AND manager_id=?`, id, managerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteEngagementTasks(ctx context.Context, q Querier, engagementID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM manager_engagement_tasks WHERE manager_engagement_id=?`, engagementID)
	return err
}

func (r Repo) DeleteEngagementDeliverables(ctx context.Context, q Querier, engagementID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM manager_engagement_deliverables WHERE manager_engagement_id=?`, engagementID)
	return err
}

func (r Repo) InsertEngagementTask(ctx context.Context, q Querier, t domain.EngagementTask) (int64, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO manager_engagement_tasks(manager_engagement_id,label,eligible_task_id,created_at,updated_at)
		 VALUES (?,?,?,?,?)`,
		t.ManagerEngagementID, t.Label, nullableInt64Ptr(t.EligibleTaskID), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) InsertEngagementDeliverable(ctx context.Context, q Querier, d domain.EngagementDeliverable) (int64, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO manager_engagement_deliverables(manager_engagement_id,label,eligible_deliverable_id,created_at,updated_at)
		 VALUES (?,?,?,?,?)`,
		d.ManagerEngagementID, d.Label, nullableInt64Ptr(d.EligibleDeliverableID), d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func inPlaceholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idsToArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// TasksByEngagementIDs loads every task row for the given roots in a single
// IN query, keyed by owning engagement id.
func (r Repo) TasksByEngagementIDs(ctx context.Context, q Querier, ids []int64) (map[int64][]domain.EngagementTask, error) {
	res := map[int64][]domain.EngagementTask{}
	if len(ids) == 0 {
		return res, nil
	}
	rows, err := q.QueryContext(ctx,
		`SELECT id,manager_engagement_id,label,eligible_task_id,created_at,updated_at
		 FROM manager_engagement_tasks WHERE manager_engagement_id IN (`+inPlaceholders(len(ids))+`) ORDER BY id`,
		idsToArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			t        domain.EngagementTask
			eligible sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &t.ManagerEngagementID, &t.Label, &eligible, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.EligibleTaskID = int64PtrFromNull(eligible)
		res[t.ManagerEngagementID] = append(res[t.ManagerEngagementID], t)
	}
	return res, rows.Err()
}

// DeliverablesByEngagementIDs loads every deliverable row for the given
// roots in a single IN query, resolving periodicity through a left join on
// the deliverable catalog so dangling references stay null.
func (r Repo) DeliverablesByEngagementIDs(ctx context.Context, q Querier, ids []int64) (map[int64][]domain.EngagementDeliverable, error) {
	res := map[int64][]domain.EngagementDeliverable{}
	if len(ids) == 0 {
		return res, nil
	}
	rows, err := q.QueryContext(ctx,
		`SELECT med.id, med.manager_engagement_id, med.label, med.eligible_deliverable_id,
		        ed.periodicity, med.created_at, med.updated_at
		 FROM manager_engagement_deliverables med
		 LEFT JOIN eligible_deliverables ed ON ed.id = med.eligible_deliverable_id
		 WHERE med.manager_engagement_id IN (`+inPlaceholders(len(ids))+`) ORDER BY med.id`,
		idsToArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			d           domain.EngagementDeliverable
			eligible    sql.NullInt64
			periodicity sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.ManagerEngagementID, &d.Label, &eligible, &periodicity, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.EligibleDeliverableID = int64PtrFromNull(eligible)
		if periodicity.Valid {
			p := domain.Periodicity(periodicity.String)
			d.Periodicity = &p
		}
		res[d.ManagerEngagementID] = append(res[d.ManagerEngagementID], d)
	}
	return res, rows.Err()
}

func collectManagerEngagementRows(rows *sql.Rows) ([]domain.ManagerEngagement, error) {
	var res []domain.ManagerEngagement
	for rows.Next() {
		var (
			m        domain.ManagerEngagement
			eligible sql.NullInt64
		)
		if err := rows.Scan(&m.ID, &m.ManagerID, &m.EngagementCode, &m.EngagementName, &eligible, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.EligibleEngagementID = int64PtrFromNull(eligible)
		res = append(res, m)
	}
	return res, rows.Err()
}
