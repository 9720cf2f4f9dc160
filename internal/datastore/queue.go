package datastore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/geocapture/internal/errors"
	"github.com/tphakala/geocapture/internal/logger"
)

const backfillBatchSize = 100

// errBackfillDone stops batch iteration once the backfill limit is reached.
var errBackfillDone = errors.NewStd("backfill limit reached")

// eligible restricts a query to entries the worker may process: pending,
// below the attempts ceiling and not held by an unexpired lease.
func (s *Store) eligible(db *gorm.DB, now time.Time) *gorm.DB {
	return db.Model(&AnalysisQueueEntry{}).
		Where("status = ?", QueueStatusPending).
		Where("(attempts < ? OR attempts IS NULL)", s.maxAttempts).
		Where("(leased_until IS NULL OR leased_until < ?)", now)
}

// FetchPending returns up to limit capture IDs with eligible queue entries,
// oldest first.
func (s *Store) FetchPending(ctx context.Context, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.eligible(s.db.WithContext(ctx), s.now()).
		Order("created_at ASC").
		Limit(limit).
		Pluck("capture_id", &ids).Error
	if err != nil {
		return nil, dbError(err, "fetch_pending")
	}
	return ids, nil
}

// ClaimPending fetches like FetchPending and leases the returned entries
// for the given duration so other workers skip them. On MySQL and
// PostgreSQL the selected rows are locked with SKIP LOCKED.
func (s *Store) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	now := s.now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := s.eligible(tx, now).Order("created_at ASC").Limit(limit)
		if s.driver != DriverSQLite {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := q.Pluck("capture_id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&AnalysisQueueEntry{}).
			Where("capture_id IN ?", ids).
			Update("leased_until", now.Add(lease)).Error
	})
	if err != nil {
		return nil, dbError(err, "claim_pending")
	}
	return ids, nil
}

// ErrQueueEntryNotFound indicates the capture has no analysis queue entry.
var ErrQueueEntryNotFound = errors.NewStd("analysis queue entry not found")

// GetQueueEntry loads the queue entry of a capture.
func (s *Store) GetQueueEntry(ctx context.Context, captureID uuid.UUID) (*AnalysisQueueEntry, error) {
	var entry AnalysisQueueEntry
	err := s.db.WithContext(ctx).Where("capture_id = ?", captureID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrQueueEntryNotFound
	}
	if err != nil {
		return nil, dbError(err, "get_queue_entry")
	}
	return &entry, nil
}

// IncrementAttempts records a permanent failure for the capture's entry.
func (s *Store) IncrementAttempts(ctx context.Context, captureID uuid.UUID) error {
	err := s.db.WithContext(ctx).Model(&AnalysisQueueEntry{}).
		Where("capture_id = ?", captureID).
		Updates(map[string]any{
			"attempts":     gorm.Expr("COALESCE(attempts, 0) + 1"),
			"last_attempt": s.now(),
			"leased_until": nil,
		}).Error
	if err != nil {
		return dbError(err, "increment_attempts")
	}
	return nil
}

// MarkCompleted moves the capture's entry to the terminal completed state.
func (s *Store) MarkCompleted(ctx context.Context, captureID uuid.UUID) error {
	if err := s.markCompleted(s.db.WithContext(ctx), captureID); err != nil {
		return dbError(err, "mark_completed")
	}
	return nil
}

func (s *Store) markCompleted(tx *gorm.DB, captureID uuid.UUID) error {
	return tx.Model(&AnalysisQueueEntry{}).
		Where("capture_id = ?", captureID).
		Updates(map[string]any{
			"status":       QueueStatusCompleted,
			"last_attempt": s.now(),
			"leased_until": nil,
		}).Error
}

// EnqueueAnalysis creates a pending entry for the capture. It reports false
// when the capture already has an entry.
func (s *Store) EnqueueAnalysis(ctx context.Context, captureID uuid.UUID) (bool, error) {
	entry := AnalysisQueueEntry{
		ID:        uuid.New(),
		CaptureID: captureID,
		Status:    QueueStatusPending,
		CreatedAt: s.now(),
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "capture_id"}},
			DoNothing: true,
		}).
		Create(&entry)
	if result.Error != nil {
		return false, dbError(result.Error, "enqueue_analysis")
	}
	return result.RowsAffected > 0, nil
}

// BackfillQueue enqueues non-deleted captures that have no queue entry and
// no vision result. A limit of zero or less enqueues all of them. It
// returns the number of entries created.
func (s *Store) BackfillQueue(ctx context.Context, limit int) (int, error) {
	var (
		batch    []Capture
		enqueued int
		innerErr error
	)

	result := s.db.WithContext(ctx).
		Select("id", "vision_result").
		Where("is_deleted = ?", false).
		Where("NOT EXISTS (SELECT 1 FROM analysis_queue q WHERE q.capture_id = captures.id)").
		FindInBatches(&batch, backfillBatchSize, func(_ *gorm.DB, _ int) error {
			for i := range batch {
				if !NeedsAnalysis(batch[i].VisionResult) {
					continue
				}
				created, err := s.EnqueueAnalysis(ctx, batch[i].ID)
				if err != nil {
					innerErr = err
					return err
				}
				if created {
					enqueued++
				}
				if limit > 0 && enqueued >= limit {
					return errBackfillDone
				}
			}
			return nil
		})

	if innerErr != nil {
		return enqueued, innerErr
	}
	if result.Error != nil && !errors.Is(result.Error, errBackfillDone) {
		return enqueued, dbError(result.Error, "backfill_queue")
	}

	s.log.Info("Analysis queue backfilled", logger.Int("enqueued", enqueued))
	return enqueued, nil
}

// PurgeCompleted deletes completed entries whose last attempt is older
// than the retention window.
func (s *Store) PurgeCompleted(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan)
	result := s.db.WithContext(ctx).
		Where("status = ? AND last_attempt < ?", QueueStatusCompleted, cutoff).
		Delete(&AnalysisQueueEntry{})
	if result.Error != nil {
		return 0, dbError(result.Error, "purge_completed")
	}
	if result.RowsAffected > 0 {
		s.log.Info("Purged completed queue entries",
			logger.Int64("deleted", result.RowsAffected),
			logger.Time("cutoff", cutoff))
	}
	return result.RowsAffected, nil
}

// QueueStats counts entries by state. Exhausted entries are pending ones
// that reached the attempts ceiling.
func (s *Store) QueueStats(ctx context.Context) (QueueStats, error) {
	var stats QueueStats
	db := s.db.WithContext(ctx)

	if err := db.Model(&AnalysisQueueEntry{}).
		Where("status = ? AND (attempts < ? OR attempts IS NULL)", QueueStatusPending, s.maxAttempts).
		Count(&stats.Pending).Error; err != nil {
		return stats, dbError(err, "queue_stats")
	}
	if err := db.Model(&AnalysisQueueEntry{}).
		Where("status = ? AND attempts >= ?", QueueStatusPending, s.maxAttempts).
		Count(&stats.Exhausted).Error; err != nil {
		return stats, dbError(err, "queue_stats")
	}
	if err := db.Model(&AnalysisQueueEntry{}).
		Where("status = ?", QueueStatusCompleted).
		Count(&stats.Completed).Error; err != nil {
		return stats, dbError(err, "queue_stats")
	}
	return stats, nil
}
