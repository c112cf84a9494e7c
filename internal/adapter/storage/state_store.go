// internal/adapter/storage/state_store.go

// Package storage provides the persistence adapters for trend state and
// spike history.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trendwire/internal/domain/trend"
)

// StateStore persists trend state in Postgres. The per-user record is
// replaced atomically via upsert; spike history is append-only.
type StateStore struct {
	db *pgxpool.Pool
}

// NewStateStore creates a Postgres-backed state store.
func NewStateStore(db *pgxpool.Pool) *StateStore {
	return &StateStore{db: db}
}

// Load returns the persisted trend state for a user, trend.ErrNotFound when
// none exists.
func (s *StateStore) Load(ctx context.Context, userID string) (*trend.TrendState, error) {
	query := `
		SELECT payload
		FROM trend_states
		WHERE user_id = $1
	`

	var payload []byte
	if err := s.db.QueryRow(ctx, query, userID).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, trend.ErrNotFound
		}
		return nil, fmt.Errorf("error querying trend state: %w", err)
	}

	var state trend.TrendState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("error unmarshaling trend state: %w", err)
	}

	return &state, nil
}

// Save replaces the user's trend state record in a single upsert.
func (s *StateStore) Save(ctx context.Context, userID string, state *trend.TrendState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("error marshaling trend state: %w", err)
	}

	query := `
		INSERT INTO trend_states (
			user_id, cycle_id, refresh_status, last_refreshed_at, payload
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET
			cycle_id = $2,
			refresh_status = $3,
			last_refreshed_at = $4,
			payload = $5
	`

	_, err = s.db.Exec(ctx, query,
		userID,
		state.CycleID,
		string(state.RefreshStatus),
		state.LastRefreshedAt,
		payload,
	)
	if err != nil {
		return fmt.Errorf("error saving trend state: %w", err)
	}

	return nil
}

// AppendSpikeHistory inserts the cycle's spikes into the append-only history.
func (s *StateStore) AppendSpikeHistory(ctx context.Context, userID string, spikes []trend.Spike) error {
	if len(spikes) == 0 {
		return nil
	}

	query := `
		INSERT INTO spike_history (
			id, user_id, term, bucket, observed_count,
			baseline_mean, baseline_stddev, z_score, severity, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	batch := &pgx.Batch{}
	for _, sp := range spikes {
		batch.Queue(query,
			sp.ID,
			userID,
			sp.Term,
			sp.Bucket,
			sp.ObservedCount,
			sp.BaselineMean,
			sp.BaselineStddev,
			sp.ZScore,
			string(sp.Severity),
			sp.DetectedAt,
		)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range spikes {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("error appending spike history: %w", err)
		}
	}

	return nil
}

// SpikeHistory returns the most recent spikes for a user, optionally scoped
// to one term, newest first.
func (s *StateStore) SpikeHistory(ctx context.Context, userID, term string, limit int) ([]trend.Spike, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, term, bucket, observed_count,
		       baseline_mean, baseline_stddev, z_score, severity, detected_at
		FROM spike_history
		WHERE user_id = $1
	`
	args := []interface{}{userID}

	if term != "" {
		query += " AND term = $2"
		args = append(args, term)
	}
	query += fmt.Sprintf(" ORDER BY detected_at DESC LIMIT %d", limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying spike history: %w", err)
	}
	defer rows.Close()

	var spikes []trend.Spike
	for rows.Next() {
		var sp trend.Spike
		var severity string
		if err := rows.Scan(
			&sp.ID,
			&sp.Term,
			&sp.Bucket,
			&sp.ObservedCount,
			&sp.BaselineMean,
			&sp.BaselineStddev,
			&sp.ZScore,
			&severity,
			&sp.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning spike: %w", err)
		}
		sp.Severity = trend.Severity(severity)
		spikes = append(spikes, sp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating spike history: %w", err)
	}

	return spikes, nil
}
