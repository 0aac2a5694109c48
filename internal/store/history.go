package store

import (
	"context"
	"fmt"
	"time"

	"airline_scheduler/internal/clock"
)

type HistoryEvent string

const (
	EventAccepted HistoryEvent = "accepted"
	EventExpired  HistoryEvent = "expired"
	EventPurged   HistoryEvent = "purged"
)

// HistoryEntry is one line of the contract ledger.
type HistoryEntry struct {
	ContractID   string         `json:"contract_id"`
	Registration string         `json:"registration"`
	Event        HistoryEvent   `json:"event"`
	Playtime     clock.Playtime `json:"playtime"`
	Profit       int64          `json:"profit"`
	RecordedAt   time.Time      `json:"recorded_at"`
}

func (s *Store) RecordHistory(ctx context.Context, e HistoryEntry) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contract_history(contract_id,registration,event,playtime,profit,recorded_at) VALUES (?,?,?,?,?,?)`,
		e.ContractID, e.Registration, string(e.Event), int64(e.Playtime), e.Profit, e.RecordedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("record history %s: %w", e.ContractID, err)
	}
	return nil
}

// History lists ledger entries oldest first. An empty contractID lists all.
func (s *Store) History(ctx context.Context, contractID string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT contract_id,registration,event,playtime,profit,recorded_at FROM contract_history`
	args := []any{}
	if contractID != "" {
		q += ` WHERE contract_id=?`
		args = append(args, contractID)
	}
	q += ` ORDER BY rowid LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var event string
		var playtime, recorded int64
		if err := rows.Scan(&e.ContractID, &e.Registration, &event, &playtime, &e.Profit, &recorded); err != nil {
			return nil, err
		}
		e.Event = HistoryEvent(event)
		e.Playtime = clock.Playtime(playtime)
		e.RecordedAt = time.UnixMilli(recorded)
		out = append(out, e)
	}
	return out, rows.Err()
}
