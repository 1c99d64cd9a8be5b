package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
)

// SettingsRepository persists console settings as key/value rows. Keys never
// written fall back to the defaults it was built with.
type SettingsRepository struct {
	pool     PgxPool
	defaults domain.Settings
}

func NewSettingsRepository(pool PgxPool, defaults domain.Settings) *SettingsRepository {
	return &SettingsRepository{pool: pool, defaults: defaults}
}

func (r *SettingsRepository) Get(ctx context.Context) (domain.Settings, error) {
	query := `SELECT value, updated_at FROM settings WHERE key = $1`

	var value string
	var updatedAt time.Time
	err := r.pool.QueryRow(ctx, query, domain.SettingFacialRecognition).Scan(&value, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.defaults, nil
		}
		return domain.Settings{}, fmt.Errorf("get settings: %w", err)
	}

	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("get settings: parse %s: %w", domain.SettingFacialRecognition, err)
	}

	return domain.Settings{FacialRecognition: enabled, UpdatedAt: updatedAt}, nil
}

func (r *SettingsRepository) Save(ctx context.Context, s domain.Settings) (domain.Settings, error) {
	query := `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
		    updated_at = EXCLUDED.updated_at
		RETURNING updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		domain.SettingFacialRecognition,
		strconv.FormatBool(s.FacialRecognition),
	).Scan(&s.UpdatedAt)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	return s, nil
}

// MemorySettings keeps settings in process memory, for deployments without a
// database.
type MemorySettings struct {
	mu       sync.RWMutex
	settings domain.Settings
	now      func() time.Time
}

func NewMemorySettings(defaults domain.Settings) *MemorySettings {
	return &MemorySettings{settings: defaults, now: time.Now}
}

func (m *MemorySettings) Get(_ context.Context) (domain.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings, nil
}

func (m *MemorySettings) Save(_ context.Context, s domain.Settings) (domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.UpdatedAt = m.now()
	m.settings = s
	return s, nil
}

var (
	_ SettingsRepositoryInterface = (*SettingsRepository)(nil)
	_ SettingsRepositoryInterface = (*MemorySettings)(nil)
)
