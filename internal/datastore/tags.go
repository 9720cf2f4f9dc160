package datastore

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/geocapture/internal/logger"
)

// ReplaceTags replaces every tag association of the capture with names.
// Tags are created on first use. Names are trimmed and deduplicated;
// empty names are skipped.
func (s *Store) ReplaceTags(ctx context.Context, captureID uuid.UUID, names []string) error {
	var resolved map[string]uuid.UUID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		resolved, err = s.replaceTags(tx, captureID, names)
		return err
	})
	if err != nil {
		s.forgetTags(names)
		return dbError(err, "replace_tags")
	}
	s.rememberTags(resolved)

	s.log.Debug("Capture tags replaced",
		logger.String("capture_id", captureID.String()),
		logger.Int("count", len(resolved)))
	return nil
}

// replaceTags runs inside tx and returns the tag IDs it linked, by name.
func (s *Store) replaceTags(tx *gorm.DB, captureID uuid.UUID, names []string) (map[string]uuid.UUID, error) {
	names = uniqueNames(names)
	resolved := make(map[string]uuid.UUID, len(names))

	if err := tx.Where("capture_id = ?", captureID).Delete(&CaptureTag{}).Error; err != nil {
		return nil, err
	}
	for _, name := range names {
		tagID, err := s.resolveTag(tx, name)
		if err != nil {
			return nil, err
		}
		resolved[name] = tagID

		link := CaptureTag{CaptureID: captureID, TagID: tagID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

// resolveTag returns the ID of the named tag, creating it if needed.
// A cached ID is checked against the tags table first, since the row may
// have been removed by another process.
func (s *Store) resolveTag(tx *gorm.DB, name string) (uuid.UUID, error) {
	if cached, ok := s.tagIDs.Get(name); ok {
		id := cached.(uuid.UUID)
		var n int64
		if err := tx.Model(&Tag{}).Where("id = ? AND name = ?", id, name).Count(&n).Error; err != nil {
			return uuid.Nil, err
		}
		if n > 0 {
			return id, nil
		}
		s.tagIDs.Delete(name)
	}

	tag := Tag{ID: uuid.New(), Name: name, CreatedAt: s.now()}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&tag).Error; err != nil {
		return uuid.Nil, err
	}

	// The insert is a no-op when another capture created the tag first
	var existing Tag
	if err := tx.Where("name = ?", name).First(&existing).Error; err != nil {
		return uuid.Nil, err
	}
	return existing.ID, nil
}

// rememberTags caches IDs once their transaction has committed.
func (s *Store) rememberTags(resolved map[string]uuid.UUID) {
	for name, id := range resolved {
		s.tagIDs.SetDefault(name, id)
	}
}

// forgetTags drops cached IDs touched by a failed transaction.
func (s *Store) forgetTags(names []string) {
	for _, name := range uniqueNames(names) {
		s.tagIDs.Delete(name)
	}
}

// TagsForCapture returns the tag names linked to the capture, sorted.
func (s *Store) TagsForCapture(ctx context.Context, captureID uuid.UUID) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Table("tags").
		Joins("JOIN capture_tags ct ON ct.tag_id = tags.id").
		Where("ct.capture_id = ?", captureID).
		Order("tags.name").
		Pluck("tags.name", &names).Error
	if err != nil {
		return nil, dbError(err, "tags_for_capture")
	}
	return names, nil
}

// AllTags returns every tag name, sorted.
func (s *Store) AllTags(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.WithContext(ctx).Model(&Tag{}).Order("name").Pluck("name", &names).Error; err != nil {
		return nil, dbError(err, "all_tags")
	}
	return names, nil
}

func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
