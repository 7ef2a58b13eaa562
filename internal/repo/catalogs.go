package repo

import (
	"context"
	"database/sql"

	"tempoline/internal/domain"
)

// Natural-key lookups compare with COLLATE NOCASE so "ENG-1" and "eng-1"
// land on the same row; the unique indexes in the schema enforce the same
// collation at write time.

func scanEligibleEngagement(row *sql.Row) (domain.EligibleEngagement, error) {
	var e domain.EligibleEngagement
	err := row.Scan(&e.ID, &e.EngagementCode, &e.EngagementName, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	return e, err
}

func (r Repo) GetEligibleEngagement(ctx context.Context, q Querier, id int64) (domain.EligibleEngagement, error) {
	return scanEligibleEngagement(q.QueryRowContext(ctx,
		`SELECT id,engagement_code,engagement_name,created_at,updated_at FROM eligible_engagements WHERE id=?`, id))
}

func (r Repo) GetEligibleEngagementByCode(ctx context.Context, q Querier, code string) (domain.EligibleEngagement, error) {
	return scanEligibleEngagement(q.QueryRowContext(ctx,
		`SELECT id,engagement_code,engagement_name,created_at,updated_at FROM eligible_engagements WHERE engagement_code=? COLLATE NOCASE`, code))
}

func (r Repo) InsertEligibleEngagement(ctx context.Context, q Querier, e domain.EligibleEngagement) (int64, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO eligible_engagements(engagement_code,engagement_name,created_at,updated_at) VALUES (?,?,?,?)`,
		e.EngagementCode, e.EngagementName, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return 0, wrapUnique(err)
	}
	return res.LastInsertId()
}

func (r Repo) UpdateEligibleEngagement(ctx context.Context, q Querier, e domain.EligibleEngagement) error {
	res, err := q.ExecContext(ctx,
		`UPDATE eligible_engagements SET engagement_code=?, engagement_name=?, updated_at=? WHERE id=?`,
		e.EngagementCode, e.EngagementName, e.UpdatedAt, e.ID)
	if err != nil {
		return wrapUnique(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertEligibleEngagement inserts the code if absent and unconditionally
// refreshes the display name: last writer wins on the name, the code never
// changes once matched.
func (r Repo) UpsertEligibleEngagement(ctx context.Context, q Querier, code, name, now string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO eligible_engagements(engagement_code,engagement_name,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(engagement_code) DO UPDATE SET engagement_name=excluded.engagement_name, updated_at=excluded.updated_at`,
		code, name, now, now)
	return err
}

func (r Repo) DeleteEligibleEngagement(ctx context.Context, q Querier, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM eligible_engagements WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SearchEligibleEngagements(ctx context.Context, q Querier, query string, limit int) ([]domain.EligibleEngagement, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if query != "" {
		pattern := "%" + query + "%"
		rows, err = q.QueryContext(ctx,
			`SELECT id,engagement_code,engagement_name,created_at,updated_at FROM eligible_engagements
			 WHERE engagement_code LIKE ? OR engagement_name LIKE ?
			 ORDER BY engagement_code COLLATE NOCASE LIMIT ?`, pattern, pattern, limit)
	} else {
		rows, err = q.QueryContext(ctx,
			`SELECT id,engagement_code,engagement_name,created_at,updated_at FROM eligible_engagements
			 ORDER BY engagement_code COLLATE NOCASE LIMIT ?`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEligibleEngagements(rows)
}

func (r Repo) ListEligibleEngagements(ctx context.Context, q Querier) ([]domain.EligibleEngagement, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id,engagement_code,engagement_name,created_at,updated_at FROM eligible_engagements ORDER BY engagement_code COLLATE NOCASE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEligibleEngagements(rows)
}

func collectEligibleEngagements(rows *sql.Rows) ([]domain.EligibleEngagement, error) {
	var res []domain.EligibleEngagement
	for rows.Next() {
		var e domain.EligibleEngagement
		if err := rows.Scan(&e.ID, &e.EngagementCode, &e.EngagementName, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func scanEligibleTask(row *sql.Row) (domain.EligibleTask, error) {
	var t domain.EligibleTask
	err := row.Scan(&t.ID, &t.Macroprocess, &t.Process, &t.Label, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) GetEligibleTask(ctx context.Context, q Querier, id int64) (domain.EligibleTask, error) {
	return scanEligibleTask(q.QueryRowContext(ctx,
		`SELECT id,macroprocess,process,label,created_at,updated_at FROM eligible_tasks WHERE id=?`, id))
}

func (r Repo) GetEligibleTaskByKey(ctx context.Context, q Querier, macroprocess, process, label string) (domain.EligibleTask, error) {
	return scanEligibleTask(q.QueryRowContext(ctx,
		`SELECT id,macroprocess,process,label,created_at,updated_at FROM eligible_tasks
		 WHERE macroprocess=? COLLATE NOCASE AND process=? COLLATE NOCASE AND label=? COLLATE NOCASE`,
		macroprocess, process, label))
}

func (r Repo) InsertEligibleTask(ctx context.Context, q Querier, t domain.EligibleTask) (int64, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO eligible_tasks(macroprocess,process,label,created_at,updated_at) VALUES (?,?,?,?,?)`,
		t.Macroprocess, t.Process, t.Label, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return 0, wrapUnique(err)
	}
	return res.LastInsertId()
}

func (r Repo) UpdateEligibleTask(ctx context.Context, q Querier, t domain.EligibleTask) error {
	res, err := q.ExecContext(ctx,
		`UPDATE eligible_tasks SET macroprocess=?, process=?, label=?, updated_at=? WHERE id=?`,
		t.Macroprocess, t.Process, t.Label, t.UpdatedAt, t.ID)
	if err != nil {
		return wrapUnique(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertEligibleTask inserts the triple if absent; the key has no display
// fields, so a match is left untouched.
func (r Repo) UpsertEligibleTask(ctx context.Context, q Querier, macroprocess, process, label, now string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO eligible_tasks(macroprocess,process,label,created_at,updated_at) VALUES (?,?,?,?,?)
ON CONFLICT(macroprocess,process,label) DO NOTHING`,
		macroprocess, process, label, now, now)
	return err
}

func (r Repo) TouchEligibleTask(ctx context.Context, q Querier, id int64, now string) error {
	_, err := q.ExecContext(ctx, `UPDATE eligible_tasks SET updated_at=? WHERE id=?`, now, id)
	return err
}

func (r Repo) DeleteEligibleTask(ctx context.Context, q Querier, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM eligible_tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SearchEligibleTasks(ctx context.Context, q Querier, query string, limit int) ([]domain.EligibleTask, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if query != "" {
		pattern := "%" + query + "%"
		rows, err = q.QueryContext(ctx,
			`SELECT id,macroprocess,process,label,created_at,updated_at FROM eligible_tasks
			 WHERE macroprocess LIKE ? OR process LIKE ? OR label LIKE ?
			 ORDER BY macroprocess COLLATE NOCASE, process COLLATE NOCASE, label COLLATE NOCASE LIMIT ?`,
			pattern, pattern, pattern, limit)
	} else {
		rows, err = q.QueryContext(ctx,
			`SELECT id,macroprocess,process,label,created_at,updated_at FROM eligible_tasks
			 ORDER BY macroprocess COLLATE NOCASE, process COLLATE NOCASE, label COLLATE NOCASE LIMIT ?`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEligibleTasks(rows)
}

func (r Repo) ListEligibleTasks(ctx context.Context, q Querier) ([]domain.EligibleTask, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id,macroprocess,process,label,created_at,updated_at FROM eligible_tasks
		 ORDER BY macroprocess COLLATE NOCASE, process COLLATE NOCASE, label COLLATE NOCASE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEligibleTasks(rows)
}

func collectEligibleTasks(rows *sql.Rows) ([]domain.EligibleTask, error) {
	var res []domain.EligibleTask
	for rows.Next() {
		var t domain.EligibleTask
		if err := rows.Scan(&t.ID, &t.Macroprocess, &t.Process, &t.Label, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func scanEligibleDeliverable(row *sql.Row) (domain.EligibleDeliverable, error) {
	var d domain.EligibleDeliverable
	err := row.Scan(&d.ID, &d.Label, &d.Periodicity, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

func (r Repo) GetEligibleDeliverable(ctx context.Context, q Querier, id int64) (domain.EligibleDeliverable, error) {
	return scanEligibleDeliverable(q.QueryRowContext(ctx,
		`SELECT id,label,periodicity,created_at,updated_at FROM eligible_deliverables WHERE id=?`, id))
}

func (r Repo) GetEligibleDeliverableByKey(ctx context.Context, q Querier, label string, periodicity domain.Periodicity) (domain.EligibleDeliverable, error) {
	return scanEligibleDeliverable(q.QueryRowContext(ctx,
		`SELECT id,label,periodicity,created_at,updated_at FROM eligible_deliverables
		 WHERE label=? COLLATE NOCASE AND periodicity=?`, label, string(periodicity)))
}

func (r Repo) InsertEligibleDeliverable(ctx context.Context, q Querier, d domain.EligibleDeliverable) (int64, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO eligible_deliverables(label,periodicity,created_at,updated_at) VALUES (?,?,?,?)`,
		d.Label, string(d.Periodicity), d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return 0, wrapUnique(err)
	}
	return res.LastInsertId()
}

func (r Repo) UpdateEligibleDeliverable(ctx context.Context, q Querier, d domain.EligibleDeliverable) error {
	res, err := q.ExecContext(ctx,
		`UPDATE eligible_deliverables SET label=?, periodicity=?, updated_at=? WHERE id=?`,
		d.Label, string(d.Periodicity), d.UpdatedAt, d.ID)
	if err != nil {
		return wrapUnique(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertEligibleDeliverable inserts the (label, periodicity) pair if absent.
func (r Repo) UpsertEligibleDeliverable(ctx context.Context, q Querier, label string, periodicity domain.Periodicity, now string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO eligible_deliverables(label,periodicity,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(label,periodicity) DO NOTHING`,
		label, string(periodicity), now, now)
	return err
}

func (r Repo) TouchEligibleDeliverable(ctx context.Context, q Querier, id int64, now string) error {
	_, err := q.ExecContext(ctx, `UPDATE eligible_deliverables SET updated_at=? WHERE id=?`, now, id)
	return err
}

func (r Repo) DeleteEligibleDeliverable(ctx context.Context, q Querier, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM eligible_deliverables WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SearchEligibleDeliverables(ctx context.Context, q Querier, query string, limit int) ([]domain.EligibleDeliverable, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if query != "" {
		pattern := "%" + query + "%"
		rows, err = q.QueryContext(ctx,
			`SELECT id,label,periodicity,created_at,updated_at FROM eligible_deliverables
			 WHERE label LIKE ? OR periodicity LIKE ?
			 ORDER BY label COLLATE NOCASE, periodicity LIMIT ?`, pattern, pattern, limit)
	} else {
		rows, err = q.QueryContext(ctx,
			`SELECT id,label,periodicity,created_at,updated_at FROM eligible_deliverables
			 ORDER BY label COLLATE NOCASE, periodicity LIMIT ?`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEligibleDeliverables(rows)
}

func (r Repo) ListEligibleDeliverables(ctx context.Context, q Querier) ([]domain.EligibleDeliverable, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id,label,periodicity,created_at,updated_at FROM eligible_deliverables
		 ORDER BY label COLLATE NOCASE, periodicity`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEligibleDeliverables(rows)
}

func collectEligibleDeliverables(rows *sql.Rows) ([]domain.EligibleDeliverable, error) {
	var res []domain.EligibleDeliverable
	for rows.Next() {
		var d domain.EligibleDeliverable
		if err := rows.Scan(&d.ID, &d.Label, &d.Periodicity, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}
