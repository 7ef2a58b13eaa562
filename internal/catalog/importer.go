package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tempoline/internal/domain"
	"tempoline/internal/repo"
)

// EngagementRecord is one row of a bulk engagement import.
type EngagementRecord struct {
	EngagementCode string `json:"engagement_code"`
	EngagementName string `json:"engagement_name"`
}

// TaskRecord is one row of a bulk task import.
type TaskRecord struct {
	Macroprocess string `json:"macroprocess"`
	Process      string `json:"process"`
	Label        string `json:"label"`
}

// DeliverableRecord is one row of a bulk deliverable import. An empty
// periodicity folds to not_applicable.
type DeliverableRecord struct {
	Label       string `json:"label"`
	Periodicity string `json:"periodicity"`
}

// Skipped carries the original input of a rejected record together with the
// reason it was rejected, so a caller can report it back verbatim.
type Skipped struct {
	Input  any    `json:"input"`
	Reason string `json:"reason"`
}

// ImportResult accounts for every record of a batch: each one lands in
// exactly one bucket, and each bucket preserves the input order. Created and
// Updated hold the resulting catalog entries.
type ImportResult[T any] struct {
	BatchID string    `json:"batch_id"`
	Created []T       `json:"created"`
	Updated []T       `json:"updated"`
	Skipped []Skipped `json:"skipped"`
}

func newImportResult[T any]() ImportResult[T] {
	return ImportResult[T]{BatchID: uuid.NewString(), Created: []T{}, Updated: []T{}, Skipped: []Skipped{}}
}

func (r ImportResult[T]) total() int { return len(r.Created) + len(r.Updated) + len(r.Skipped) }

// ImportEngagements loads a batch of engagement records into the catalog in
// a single transaction. Existing codes get their display name refreshed and
// land in Updated; malformed records are skipped, never aborting the batch.
func (s Store) ImportEngagements(ctx context.Context, records []EngagementRecord) (ImportResult[domain.EligibleEngagement], error) {
	result := newImportResult[domain.EligibleEngagement]()
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return result, err
	}
	defer tx.Rollback()

	for _, rec := range records {
		code := normText(rec.EngagementCode)
		name := normText(rec.EngagementName)
		if code == "" {
			result.Skipped = append(result.Skipped, Skipped{Input: rec, Reason: "engagement_code is required"})
			continue
		}
		if name == "" {
			result.Skipped = append(result.Skipped, Skipped{Input: rec, Reason: "engagement_name is required"})
			continue
		}
		existing, err := s.Repo.GetEligibleEngagementByCode(ctx, tx, code)
		switch {
		case err == nil:
			existing.EngagementName = name
			existing.UpdatedAt = s.now()
			if err := s.Repo.UpdateEligibleEngagement(ctx, tx, existing); err != nil {
				result.Skipped = append(result.Skipped, Skipped{Input: rec, Reason: err.Error()})
				continue
			}
			result.Updated = append(result.Updated, existing)
		case errors.Is(err, repo.ErrNotFound):
			now := s.now()
			entry := domain.EligibleEngagement{EngagementCode: code, EngagementName: name, CreatedAt: now, UpdatedAt: now}
			id, err := s.Repo.InsertEligibleEngagement(ctx, tx, entry)
			if err != nil {
				result.Skipped = append(result.Skipped, Skipped{Input: rec, Reason: err.Error()})
				continue
			}
			entry.ID = id
			result.Created = append(result.Created, entry)
		default:
			return result, err
		}
	}
	if err := tx.Commit(); err != nil {
		return result, err
	}
	logImport("engagements", result)
	return result, nil
}

// ImportTasks loads a batch of task records. A record matching an existing
// triple lands in Updated; the triple itself carries no display fields, so
// only updated_at moves.
func (s Store) ImportTasks(ctx context.Context, records []TaskRecord) (ImportResult[domain.EligibleTask], error) {
	result := newImportResult[domain.EligibleTask]()
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return result, err
	}
	defer tx.Rollback()

	for _, rec := range records {
		macroprocess := normText(rec.Macroprocess)
		process := normText(rec.Process)
		label := normText(rec.Label)
		if macroprocess == "" {
			result.Skipped = append(result.Skipped, Skipped{Input: rec, Reason: "macroprocess is required"})
			continue
		}
		if process == "" {
			result.Skipped = append(result.Skipped, Skipped{Input: rec, Reason: "process is required"})
			continue
		}
		if label == "" {
			result.Skipped = append(result.Skipped, Skipped{Input: rec, Reason: "label is required"})
			continue
		}
		existing, err := s.Repo.GetEligibleTaskByKey(ctx, tx, macroprocess, process, label)
		switch {
		case err == nil:
			existing.UpdatedAt = s.now()
			if err := s.Repo.TouchEligibleTask(ctx, tx, existing.ID, existing.UpdatedAt); err != nil {
				result.Skipped = append(result.Skipped, Skipped{Input: rec, Reason: err.Error()})
				continue
			}
			result.Updated = append(result.Updated, existing)
		case errors.Is(err, repo.ErrNotFound):
			now := s.now()
			entry := domain.EligibleTask{Macroprocess: macroprocess, Process: process, Label: label, CreatedAt: now, UpdatedAt: now}
			id, err := s.Repo.InsertEligibleTask(ctx, tx, entry)
			if err != nil {
				result.Skipped = append(result.Skipped, Skipped{Input: rec, Reason: err.Error()})
				continue
			}
			entry.ID = id
			result.Created = append(result.Created, entry)
		default:
			return result, err
		}
	}
	if err := tx.Commit(); err != nil {
		return result, err
	}
	logImport("tasks", result)
	return result, nil
}

// ImportDeliverables loads a batch of deliverable records. Records with a
// periodicity outside the closed set are skipped with a reason naming the
// bad value.
func (s Store) ImportDeliverables(ctx context.Context, records []DeliverableRecord) (ImportResult[domain.EligibleDeliverable], error) {
	result := newImportResult[domain.EligibleDeliverable]()
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return result, err
	}
	defer tx.Rollback()

	for _, rec := range records {
		label := normText(rec.Label)
		if label == "" {
			result.Skipped = append(result.Skipped, Skipped{Input: rec, Reason: "label is required"})
			continue
		}
		periodicity, vErr := parsePeriodicity(rec.Periodicity)
		if vErr != nil {
			result.Skipped = append(result.Skipped, Skipped{Input: rec, Reason: fmt.Sprintf("periodicity %q is not valid", rec.Periodicity)})
			continue
		}
		existing, err := s.Repo.GetEligibleDeliverableByKey(ctx, tx, label, periodicity)
		switch {
		case err == nil:
			existing.UpdatedAt = s.now()
			if err := s.Repo.TouchEligibleDeliverable(ctx, tx, existing.ID, existing.UpdatedAt); err != nil {
				result.Skipped = append(result.Skipped, Skipped{Input: rec, Reason: err.Error()})
				continue
			}
			result.Updated = append(result.Updated, existing)
		case errors.Is(err, repo.ErrNotFound):
			now := s.now()
			entry := domain.EligibleDeliverable{Label: label, Periodicity: periodicity, CreatedAt: now, UpdatedAt: now}
			id, err := s.Repo.InsertEligibleDeliverable(ctx, tx, entry)
			if err != nil {
				result.Skipped = append(result.Skipped, Skipped{Input: rec, Reason: err.Error()})
				continue
			}
			entry.ID = id
			result.Created = append(result.Created, entry)
		default:
			return result, err
		}
	}
	if err := tx.Commit(); err != nil {
		return result, err
	}
	logImport("deliverables", result)
	return result, nil
}

func logImport[T any](catalog string, result ImportResult[T]) {
	logrus.WithFields(logrus.Fields{
		"catalog":  catalog,
		"batch_id": result.BatchID,
		"created":  len(result.Created),
		"updated":  len(result.Updated),
		"skipped":  len(result.Skipped),
		"total":    result.total(),
	}).Info("catalog import finished")
}
