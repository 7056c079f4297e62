package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"playsync/internal/domain"
)

// ChannelSessionGorm is the persisted form of a channel listening session.
// The queue is stored serialized so the record stays a single row.
type ChannelSessionGorm struct {
	ChannelID        string `gorm:"primaryKey;size:64"`
	CurrentSongID    string `gorm:"size:64"`
	Position         float64
	IsPlaying        bool
	QueueJSON        string `gorm:"type:text"`
	Volume           int
	ScheduledLeaveAt *time.Time
	UserCount        int
	UpdatedAt        time.Time
}

func (ChannelSessionGorm) TableName() string {
	return "channel_sessions"
}

func (g *ChannelSessionGorm) ToDomain() (*domain.ChannelSession, error) {
	queue := []string{}
	if g.QueueJSON != "" {
		if err := json.Unmarshal([]byte(g.QueueJSON), &queue); err != nil {
			return nil, err
		}
	}
	return &domain.ChannelSession{
		ChannelID:        g.ChannelID,
		CurrentSongID:    g.CurrentSongID,
		Position:         g.Position,
		IsPlaying:        g.IsPlaying,
		Queue:            queue,
		Volume:           g.Volume,
		ScheduledLeaveAt: g.ScheduledLeaveAt,
		UserCount:        g.UserCount,
		UpdatedAt:        g.UpdatedAt,
	}, nil
}

func fromDomain(sess *domain.ChannelSession) (*ChannelSessionGorm, error) {
	queueJSON, err := json.Marshal(sess.Queue)
	if err != nil {
		return nil, err
	}
	return &ChannelSessionGorm{
		ChannelID:        sess.ChannelID,
		CurrentSongID:    sess.CurrentSongID,
		Position:         sess.Position,
		IsPlaying:        sess.IsPlaying,
		QueueJSON:        string(queueJSON),
		Volume:           sess.Volume,
		ScheduledLeaveAt: sess.ScheduledLeaveAt,
		UserCount:        sess.UserCount,
		UpdatedAt:        sess.UpdatedAt,
	}, nil
}

type ChannelSessionRepository struct {
	db *gorm.DB
}

func NewChannelSessionRepository(db *gorm.DB) *ChannelSessionRepository {
	return &ChannelSessionRepository{db: db}
}

func (r *ChannelSessionRepository) Find(ctx context.Context, channelID string) (*domain.ChannelSession, error) {
	var model ChannelSessionGorm
	err := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrChannelSessionNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

func (r *ChannelSessionRepository) Save(ctx context.Context, sess *domain.ChannelSession) error {
	model, err := fromDomain(sess)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "channel_id"}},
			UpdateAll: true,
		}).
		Create(model).Error
}

func (r *ChannelSessionRepository) Delete(ctx context.Context, channelID string) error {
	return r.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Delete(&ChannelSessionGorm{}).Error
}
