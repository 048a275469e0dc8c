package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/prepdeck/prepdeck/internal/models"
)

// ArchiveRepo persists per-response archive rows for cross-session listing.
type ArchiveRepo interface {
	Insert(ctx context.Context, row *models.ResponseArchive) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.ResponseArchive, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.ResponseArchive, error)
}

type archiveRepo struct {
	db *gorm.DB
}

func NewArchiveRepo(db *gorm.DB) ArchiveRepo {
	return &archiveRepo{db: db}
}

func (r *archiveRepo) Insert(ctx context.Context, row *models.ResponseArchive) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *archiveRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.ResponseArchive, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.ResponseArchive
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *archiveRepo) ListBySession(ctx context.Context, sessionID string) ([]models.ResponseArchive, error) {
	var rows []models.ResponseArchive
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
