package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// LiveConfigStore implements storage.LiveConfigStore as a single JSONB row.
type LiveConfigStore struct {
	pool *Pool
}

// NewLiveConfigStore creates a new LiveConfigStore.
func NewLiveConfigStore(pool *Pool) *LiveConfigStore {
	return &LiveConfigStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LiveConfigStore = (*LiveConfigStore)(nil)

// Read returns the current configuration. Returns ErrNotFound if never written.
func (s *LiveConfigStore) Read(ctx context.Context) (cfg *domain.LiveConfig, err error) {
	defer observe("live_config_read")(&err)

	var blob []byte
	if err := s.pool.QueryRow(ctx, `SELECT config FROM live_config WHERE id = 1`).Scan(&blob); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("read live config: %w", err)
	}

	cfg = &domain.LiveConfig{}
	if err := json.Unmarshal(blob, cfg); err != nil {
		return nil, fmt.Errorf("decode live config: %w", err)
	}
	cfg.UpdatedAt = cfg.UpdatedAt.UTC()
	return cfg, nil
}

// Write replaces the configuration in one upsert statement.
func (s *LiveConfigStore) Write(ctx context.Context, cfg *domain.LiveConfig) (err error) {
	defer observe("live_config_write")(&err)

	if cfg == nil {
		return storage.ErrInvalidInput
	}
	blob, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode live config: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO live_config (id, config, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET config = EXCLUDED.config, updated_at = EXCLUDED.updated_at
	`, blob, cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("write live config: %w", err)
	}
	return nil
}
