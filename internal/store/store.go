// Package store persists session state as msgpack values in a SQLite
// key/value table. Reads of missing keys yield the zero value; writes
// replace the whole record.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"airline_scheduler/internal/clock"
	"airline_scheduler/internal/models"
)

const (
	KeyPlaytime          = "playtime"
	KeyLastSave          = "last_save"
	KeyOfflineAllowance  = "offline_allowance"
	KeyActiveSchedules   = "active_schedules"
	KeyContractOffers    = "contract_offers"
	KeyInactiveContracts = "inactive_contracts"
	KeyLastRefresh       = "last_refresh"
	KeyReputation        = "reputation"
	KeyFleet             = "fleet"
)

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Get decodes key into dst. found is false when the key was never written,
// in which case dst is left untouched.
func (s *Store) Get(ctx context.Context, key string, dst any) (found bool, err error) {
	var raw []byte
	err = s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := msgpack.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Set replaces the value stored under key.
func (s *Store) Set(ctx context.Context, key string, v any) error {
	raw, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO kv(key,value,updated_at) VALUES (?,?,?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, raw, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func load[T any](ctx context.Context, s *Store, key string) (T, error) {
	var v T
	_, err := s.Get(ctx, key, &v)
	return v, err
}

func (s *Store) Playtime(ctx context.Context) (clock.Playtime, error) {
	return load[clock.Playtime](ctx, s, KeyPlaytime)
}

func (s *Store) SetPlaytime(ctx context.Context, p clock.Playtime) error {
	return s.Set(ctx, KeyPlaytime, p)
}

// LastSave is the wall-clock time of the last persisted tick, zero if none.
func (s *Store) LastSave(ctx context.Context) (time.Time, error) {
	ms, err := load[int64](ctx, s, KeyLastSave)
	if err != nil || ms == 0 {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

func (s *Store) SetLastSave(ctx context.Context, t time.Time) error {
	return s.Set(ctx, KeyLastSave, t.UnixMilli())
}

func (s *Store) OfflineAllowance(ctx context.Context) (time.Duration, error) {
	return load[time.Duration](ctx, s, KeyOfflineAllowance)
}

func (s *Store) SetOfflineAllowance(ctx context.Context, d time.Duration) error {
	return s.Set(ctx, KeyOfflineAllowance, d)
}

func (s *Store) ActiveSchedules(ctx context.Context) (map[string][]models.Schedule, error) {
	return load[map[string][]models.Schedule](ctx, s, KeyActiveSchedules)
}

func (s *Store) SetActiveSchedules(ctx context.Context, byAsset map[string][]models.Schedule) error {
	return s.Set(ctx, KeyActiveSchedules, byAsset)
}

func (s *Store) ContractOffers(ctx context.Context) ([]models.Contract, error) {
	return load[[]models.Contract](ctx, s, KeyContractOffers)
}

func (s *Store) SetContractOffers(ctx context.Context, offers []models.Contract) error {
	return s.Set(ctx, KeyContractOffers, offers)
}

func (s *Store) InactiveContracts(ctx context.Context) ([]models.Contract, error) {
	return load[[]models.Contract](ctx, s, KeyInactiveContracts)
}

func (s *Store) SetInactiveContracts(ctx context.Context, list []models.Contract) error {
	return s.Set(ctx, KeyInactiveContracts, list)
}

func (s *Store) LastRefresh(ctx context.Context) (clock.Playtime, error) {
	return load[clock.Playtime](ctx, s, KeyLastRefresh)
}

func (s *Store) SetLastRefresh(ctx context.Context, p clock.Playtime) error {
	return s.Set(ctx, KeyLastRefresh, p)
}

func (s *Store) Reputation(ctx context.Context) (int, error) {
	return load[int](ctx, s, KeyReputation)
}

func (s *Store) SetReputation(ctx context.Context, r int) error {
	return s.Set(ctx, KeyReputation, r)
}

func (s *Store) Fleet(ctx context.Context) ([]models.Asset, error) {
	return load[[]models.Asset](ctx, s, KeyFleet)
}

func (s *Store) SetFleet(ctx context.Context, assets []models.Asset) error {
	return s.Set(ctx, KeyFleet, assets)
}
