// Package jobs は添付ファイルの非同期メンテナンスを提供します。
// タスク削除時のファイル一括削除と、メタデータを失った孤児ファイルの
// 定期掃除を Asynq のキューで処理します。
package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const sweepRecordKey = "attachments:last_sweep"

// SweepRecord は孤児掃除の実行結果です。
type SweepRecord struct {
	RanAt   time.Time `json:"ranAt"`
	Scanned int       `json:"scanned"`
	Removed int       `json:"removed"`
	Failed  int       `json:"failed"`
}

// Store は掃除の実行記録を Redis に保存します。
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore は Store を作成します。
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{
		rdb: rdb,
		ttl: ttl,
	}
}

// SaveSweep は掃除結果を保存します。
func (s *Store) SaveSweep(ctx context.Context, record *SweepRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, sweepRecordKey, payload, s.ttl).Err()
}

// LastSweep は直近の掃除結果を取得します。記録がない場合は nil を返します。
func (s *Store) LastSweep(ctx context.Context) (*SweepRecord, error) {
	data, err := s.rdb.Get(ctx, sweepRecordKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var record SweepRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}
