package datastore

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tphakala/geocapture/internal/errors"
	"github.com/tphakala/geocapture/internal/logger"
)

// GetCapture loads a non-deleted capture. It returns ErrCaptureNotFound when
// no such row exists.
func (s *Store) GetCapture(ctx context.Context, id uuid.UUID) (*Capture, error) {
	var capture Capture
	err := s.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", id, false).
		First(&capture).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCaptureNotFound
	}
	if err != nil {
		return nil, dbError(err, "get_capture")
	}
	return &capture, nil
}

// CreateCapture inserts a capture and, when it carries no vision result,
// enqueues it for analysis in the same transaction.
func (s *Store) CreateCapture(ctx context.Context, capture *Capture) error {
	if capture.ID == uuid.Nil {
		capture.ID = uuid.New()
	}
	if capture.StorageType == "" {
		capture.StorageType = "s3"
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(capture).Error; err != nil {
			return err
		}
		if !NeedsAnalysis(capture.VisionResult) {
			return nil
		}
		return tx.Create(&AnalysisQueueEntry{
			ID:        uuid.New(),
			CaptureID: capture.ID,
			Status:    QueueStatusPending,
			CreatedAt: s.now(),
		}).Error
	})
	if err != nil {
		return dbError(err, "create_capture")
	}
	return nil
}

// UpdateCaptureAnalysis writes the analysis outputs to the capture row.
// A missing capture is logged and not treated as an error.
func (s *Store) UpdateCaptureAnalysis(ctx context.Context, id uuid.UUID, update AnalysisUpdate) error {
	if err := s.updateCaptureAnalysis(s.db.WithContext(ctx), id, update); err != nil {
		return dbError(err, "update_capture_analysis")
	}
	return nil
}

// SaveAnalysis records a successful analysis in one transaction: the
// capture fields, the tag links for update.Tags and the completed queue
// entry. On error nothing is written, so the entry stays pending and the
// capture still needs analysis.
func (s *Store) SaveAnalysis(ctx context.Context, id uuid.UUID, update AnalysisUpdate) error {
	var resolved map[string]uuid.UUID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.updateCaptureAnalysis(tx, id, update); err != nil {
			return err
		}
		var err error
		if resolved, err = s.replaceTags(tx, id, update.Tags); err != nil {
			return err
		}
		return s.markCompleted(tx, id)
	})
	if err != nil {
		s.forgetTags(update.Tags)
		return dbError(err, "save_analysis")
	}
	s.rememberTags(resolved)

	s.log.Debug("Analysis saved",
		logger.String("capture_id", id.String()),
		logger.Int("tags", len(resolved)))
	return nil
}

func (s *Store) updateCaptureAnalysis(tx *gorm.DB, id uuid.UUID, update AnalysisUpdate) error {
	values := map[string]any{
		"category":   update.Category,
		"confidence": update.Confidence,
		"difficulty": update.Difficulty,
		"verified":   update.Verified,
		"updated_at": s.now(),
	}

	// Map updates bypass serializers, so JSON columns are encoded here
	result, err := encodeJSON(update.Result)
	if err != nil {
		return err
	}
	values["vision_result"] = result

	tags, err := encodeJSON(update.Tags)
	if err != nil {
		return err
	}
	values["tags"] = tags

	res := tx.Model(&Capture{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		s.log.Warn("No capture row updated with analysis", logger.String("capture_id", id.String()))
	}
	return nil
}

// SetThumbnail stores the thumbnail URL of a capture.
func (s *Store) SetThumbnail(ctx context.Context, id uuid.UUID, url string) error {
	err := s.db.WithContext(ctx).Model(&Capture{}).
		Where("id = ?", id).
		Updates(map[string]any{"thumbnail_url": url, "updated_at": s.now()}).Error
	if err != nil {
		return dbError(err, "set_thumbnail")
	}
	return nil
}
