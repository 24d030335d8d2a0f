package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"pratham-chat/backend/audio/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no recording matches
var ErrNotFound = errors.New("recording not found")

type AudioRepository interface {
	Create(ctx context.Context, rec *models.Recording) error
	GetByMessage(ctx context.Context, messageID string) (*models.Recording, error)
	ListByRoom(ctx context.Context, roomID string) ([]models.Recording, error)
	DeleteByMessage(ctx context.Context, messageID string) error
	DeleteByRoom(ctx context.Context, roomID string) (int64, error)
	DeleteAll(ctx context.Context) error
}

type GormAudioRepository struct {
	db *gorm.DB
}

// NewGormAudioRepository migrates the recordings table and returns the repository
func NewGormAudioRepository(db *gorm.DB) (*GormAudioRepository, error) {
	if err := db.AutoMigrate(&models.Recording{}); err != nil {
		return nil, err
	}
	return &GormAudioRepository{db: db}, nil
}

func (r *GormAudioRepository) Create(ctx context.Context, rec *models.Recording) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *GormAudioRepository) GetByMessage(ctx context.Context, messageID string) (*models.Recording, error) {
	var rec models.Recording
	err := r.db.WithContext(ctx).Where("message_id = ?", messageID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *GormAudioRepository) ListByRoom(ctx context.Context, roomID string) ([]models.Recording, error) {
	var recs []models.Recording
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Order("created_at").Find(&recs).Error
	return recs, err
}

func (r *GormAudioRepository) DeleteByMessage(ctx context.Context, messageID string) error {
	return r.db.WithContext(ctx).Where("message_id = ?", messageID).Delete(&models.Recording{}).Error
}

func (r *GormAudioRepository) DeleteByRoom(ctx context.Context, roomID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("room_id = ?", roomID).Delete(&models.Recording{})
	return res.RowsAffected, res.Error
}

func (r *GormAudioRepository) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Recording{}).Error
}

// MemoryAudioRepository keeps the catalog in memory
type MemoryAudioRepository struct {
	mu   sync.RWMutex
	recs map[string]models.Recording
}

func NewMemoryAudioRepository() *MemoryAudioRepository {
	return &MemoryAudioRepository{recs: make(map[string]models.Recording)}
}

func (r *MemoryAudioRepository) Create(_ context.Context, rec *models.Recording) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Format == "" {
		rec.Format = "m4a"
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.recs[rec.MessageID]; exists {
		return errors.New("recording already exists for message")
	}
	r.recs[rec.MessageID] = *rec
	return nil
}

func (r *MemoryAudioRepository) GetByMessage(_ context.Context, messageID string) (*models.Recording, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.recs[messageID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (r *MemoryAudioRepository) ListByRoom(_ context.Context, roomID string) ([]models.Recording, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Recording
	for _, rec := range r.recs {
		if rec.RoomID == roomID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryAudioRepository) DeleteByMessage(_ context.Context, messageID string) error {
	r.mu.Lock()
	delete(r.recs, messageID)
	r.mu.Unlock()
	return nil
}

func (r *MemoryAudioRepository) DeleteByRoom(_ context.Context, roomID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, rec := range r.recs {
		if rec.RoomID == roomID {
			delete(r.recs, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryAudioRepository) DeleteAll(context.Context) error {
	r.mu.Lock()
	r.recs = make(map[string]models.Recording)
	r.mu.Unlock()
	return nil
}
