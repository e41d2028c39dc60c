package chat

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) InsertInteraction(ctx context.Context, in *Interaction) error {
	return r.db.WithContext(ctx).Create(in).Error
}

// ListInteractions returns a principal's interactions newest-first.
func (r *Repo) ListInteractions(ctx context.Context, userID uint64, limit, offset int) ([]Interaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var rows []Interaction
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

type Stats struct {
	TotalChats      int64   `json:"total_chats"`
	Chats24h        int64   `json:"chats_24h"`
	AvgAnswerLength float64 `json:"avg_answer_length"`
}

func (r *Repo) StatsForUser(ctx context.Context, userID uint64) (Stats, error) {
	var s Stats

	if err := r.db.WithContext(ctx).Model(&Interaction{}).
		Where("user_id = ?", userID).
		Count(&s.TotalChats).Error; err != nil {
		return Stats{}, err
	}

	since := time.Now().Add(-24 * time.Hour)
	if err := r.db.WithContext(ctx).Model(&Interaction{}).
		Where("user_id = ? AND created_at > ?", userID, since).
		Count(&s.Chats24h).Error; err != nil {
		return Stats{}, err
	}

	if err := r.db.WithContext(ctx).Model(&Interaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(AVG(LENGTH(answer)), 0)").
		Scan(&s.AvgAnswerLength).Error; err != nil {
		return Stats{}, err
	}

	return s, nil
}
