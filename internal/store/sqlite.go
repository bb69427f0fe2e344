// Package store persists observations, locations and settings in SQLite,
// and owns the compaction policy that folds aged raw records into per-slot
// aggregate buckets.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"stallcast/internal/models"
)

// ErrInvalidObservation marks append rejections caused by the caller's
// input, as opposed to database failures. Callers use errors.Is to tell
// the two apart.
var ErrInvalidObservation = errors.New("invalid observation")

// CompactionPolicy controls when raw observations are folded into buckets.
// Both knobs are deployment-tunable rather than hard constants.
type CompactionPolicy struct {
	// Retention is how long raw records stay individually addressable.
	Retention time.Duration
	// Cadence triggers a compaction run after every Nth successful append.
	Cadence int
}

// DefaultCompactionPolicy keeps 90 days of raw records and compacts every
// 50th append.
func DefaultCompactionPolicy() CompactionPolicy {
	return CompactionPolicy{
		Retention: 90 * 24 * time.Hour,
		Cadence:   50,
	}
}

type Store struct {
	db     *sql.DB
	loc    *time.Location
	policy CompactionPolicy

	// mu serializes appends and compaction so no observation can be lost
	// or double-counted by a compaction running mid-append.
	mu            sync.Mutex
	appendsSeen   int
	compactionErr error
}

func New(db *sql.DB, loc *time.Location, policy CompactionPolicy) *Store {
	if policy.Cadence <= 0 {
		policy.Cadence = DefaultCompactionPolicy().Cadence
	}
	if policy.Retention <= 0 {
		policy.Retention = DefaultCompactionPolicy().Retention
	}
	return &Store{db: db, loc: loc, policy: policy}
}

// Location returns the configured local timezone used for slot keying.
func (s *Store) Location() *time.Location {
	return s.loc
}

func (s *Store) UpsertLocation(l models.Location) error {
	_, err := s.db.Exec(`
		INSERT INTO locations (id, name, total_stalls, created_at, is_default)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			total_stalls = excluded.total_stalls,
			is_default = excluded.is_default
	`, l.ID, l.Name, l.TotalStalls, l.CreatedAt, l.IsDefault)
	return err
}

func (s *Store) GetLocations() ([]models.Location, error) {
	rows, err := s.db.Query(`SELECT id, name, total_stalls, created_at, is_default FROM locations ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []models.Location
	for rows.Next() {
		var l models.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.TotalStalls, &l.CreatedAt, &l.IsDefault); err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

func (s *Store) GetLocation(id string) (*models.Location, error) {
	row := s.db.QueryRow(`SELECT id, name, total_stalls, created_at, is_default FROM locations WHERE id = ?`, id)

	var l models.Location
	err := row.Scan(&l.ID, &l.Name, &l.TotalStalls, &l.CreatedAt, &l.IsDefault)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) GetDefaultLocation() (*models.Location, error) {
	row := s.db.QueryRow(`SELECT id, name, total_stalls, created_at, is_default FROM locations WHERE is_default = TRUE LIMIT 1`)

	var l models.Location
	err := row.Scan(&l.ID, &l.Name, &l.TotalStalls, &l.CreatedAt, &l.IsDefault)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// AppendObservation validates and inserts one observation, then runs
// compaction if the append cadence has been reached. A compaction failure
// does not fail the append (the raw record is already durable); it is
// surfaced via LastCompactionError.
func (s *Store) AppendObservation(obs models.Observation) error {
	if obs.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidObservation)
	}
	if obs.LocationID == "" {
		return fmt.Errorf("%w: missing location id", ErrInvalidObservation)
	}
	if !obs.Result.Valid() {
		return fmt.Errorf("%w: unknown result %q", ErrInvalidObservation, obs.Result)
	}
	if obs.TotalStalls < 0 {
		return fmt.Errorf("%w: negative stall count", ErrInvalidObservation)
	}
	if obs.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidObservation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO observations (id, location_id, observed_at, result, total_stalls, user_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, obs.ID, obs.LocationID, obs.Timestamp.UTC(), string(obs.Result), obs.TotalStalls, obs.UserID)
	if err != nil {
		return err
	}

	s.appendsSeen++
	if s.appendsSeen >= s.policy.Cadence {
		s.appendsSeen = 0
		s.compactionErr = s.compactLocked(time.Now())
	}
	return nil
}

// LastCompactionError reports the outcome of the most recent automatic
// compaction run, if any.
func (s *Store) LastCompactionError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compactionErr
}

func (s *Store) GetObservation(id string) (*models.Observation, error) {
	row := s.db.QueryRow(`
		SELECT id, location_id, observed_at, result, total_stalls, user_id, created_at
		FROM observations WHERE id = ?
	`, id)

	var obs models.Observation
	var result string
	var userID sql.NullString
	err := row.Scan(&obs.ID, &obs.LocationID, &obs.Timestamp, &result, &obs.TotalStalls, &userID, &obs.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	obs.Result = models.ObservationResult(result)
	obs.UserID = userID.String
	return &obs, nil
}

func (s *Store) GetObservationsByLocation(locationID string) ([]models.Observation, error) {
	return s.queryObservations(`
		SELECT id, location_id, observed_at, result, total_stalls, user_id, created_at
		FROM observations
		WHERE location_id = ?
		ORDER BY observed_at ASC
	`, locationID)
}

func (s *Store) GetAllObservations() ([]models.Observation, error) {
	return s.queryObservations(`
		SELECT id, location_id, observed_at, result, total_stalls, user_id, created_at
		FROM observations
		ORDER BY observed_at ASC
	`)
}

func (s *Store) queryObservations(query string, args ...any) ([]models.Observation, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var observations []models.Observation
	for rows.Next() {
		var obs models.Observation
		var result string
		var userID sql.NullString
		if err := rows.Scan(&obs.ID, &obs.LocationID, &obs.Timestamp, &result, &obs.TotalStalls, &userID, &obs.CreatedAt); err != nil {
			return nil, err
		}
		obs.Result = models.ObservationResult(result)
		obs.UserID = userID.String
		observations = append(observations, obs)
	}
	return observations, rows.Err()
}

func (s *Store) DeleteObservation(id string) error {
	res, err := s.db.Exec(`DELETE FROM observations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("observation %s not found", id)
	}
	return nil
}

func (s *Store) CountObservations() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM observations`).Scan(&n)
	return n, err
}

func (s *Store) CountObservationsByLocation(locationID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM observations WHERE location_id = ?`, locationID).Scan(&n)
	return n, err
}

func (s *Store) GetCompressedBuckets(locationID string) ([]models.CompressedBucket, error) {
	rows, err := s.db.Query(`
		SELECT location_id, slot_key, total_records, available_count, occupied_count, last_timestamp
		FROM compressed_buckets
		WHERE location_id = ?
		ORDER BY slot_key ASC
	`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []models.CompressedBucket
	for rows.Next() {
		var b models.CompressedBucket
		if err := rows.Scan(&b.LocationID, &b.SlotKey, &b.TotalRecords, &b.AvailableCount, &b.OccupiedCount, &b.LastTimestamp); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// GetSettings reads the settings blob from the key-value table, falling
// back to defaults when none has been written yet.
func (s *Store) GetSettings() (models.Settings, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = 'user_settings'`).Scan(&raw)
	if err == sql.ErrNoRows {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.Settings{}, err
	}

	var settings models.Settings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return models.Settings{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	return settings, nil
}

func (s *Store) SaveSettings(settings models.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO settings (key, value) VALUES ('user_settings', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, string(raw))
	return err
}
