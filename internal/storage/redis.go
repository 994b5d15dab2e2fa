package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/manullamas/adx-agent/internal/models"
)

const historyKey = "adx:impression_history"

// RedisHistoryStore keeps the impression history as a Redis list of
// JSON records, shared between agent instances running on the same
// history.
type RedisHistoryStore struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisHistoryStore(client *redis.Client, log *zap.Logger) *RedisHistoryStore {
	return &RedisHistoryStore{client: client, log: log}
}

func (s *RedisHistoryStore) Load(ctx context.Context) ([]models.ImpressionRecord, error) {
	raw, err := s.client.LRange(ctx, historyKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load impression history: %w", err)
	}
	records := make([]models.ImpressionRecord, 0, len(raw))
	skipped := 0
	for _, item := range raw {
		var rec models.ImpressionRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if skipped > 0 {
		s.log.Warn("skipped malformed impression records",
			zap.String("key", historyKey), zap.Int("skipped", skipped))
	}
	return records, nil
}

func (s *RedisHistoryStore) Save(ctx context.Context, records []models.ImpressionRecord) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, historyKey)
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal impression record: %w", err)
		}
		pipe.RPush(ctx, historyKey, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save impression history: %w", err)
	}
	return nil
}
