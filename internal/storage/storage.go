package storage

import (
	"context"
	"sync"

	"github.com/manullamas/adx-agent/internal/models"
)

// HistoryStore persists the impression bid history across games.
type HistoryStore interface {
	Load(ctx context.Context) ([]models.ImpressionRecord, error)
	Save(ctx context.Context, records []models.ImpressionRecord) error
}

// CampaignLog persists finalized campaigns across games.
type CampaignLog interface {
	Load(ctx context.Context) ([]models.Campaign, error)
	Append(ctx context.Context, campaigns []models.Campaign) error
}

// In-memory implementations

// InMemoryHistoryStore keeps impression records in memory. Used in
// tests and for games where cross-run persistence is disabled.
type InMemoryHistoryStore struct {
	mu      sync.RWMutex
	records []models.ImpressionRecord
}

func NewInMemoryHistoryStore() *InMemoryHistoryStore {
	return &InMemoryHistoryStore{}
}

func (s *InMemoryHistoryStore) Load(ctx context.Context) ([]models.ImpressionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ImpressionRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *InMemoryHistoryStore) Save(ctx context.Context, records []models.ImpressionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make([]models.ImpressionRecord, len(records))
	copy(s.records, records)
	return nil
}

// InMemoryCampaignLog keeps finalized campaigns in memory.
type InMemoryCampaignLog struct {
	mu        sync.RWMutex
	campaigns []models.Campaign
}

func NewInMemoryCampaignLog() *InMemoryCampaignLog {
	return &InMemoryCampaignLog{}
}

func (l *InMemoryCampaignLog) Load(ctx context.Context) ([]models.Campaign, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Campaign, len(l.campaigns))
	copy(out, l.campaigns)
	return out, nil
}

func (l *InMemoryCampaignLog) Append(ctx context.Context, campaigns []models.Campaign) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.campaigns = append(l.campaigns, campaigns...)
	return nil
}
