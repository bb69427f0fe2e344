package store

import (
	"fmt"
	"time"

	"stallcast/internal/metrics"
	"stallcast/internal/models"
	"stallcast/internal/timeslot"
)

// Compact folds raw observations older than the retention window into
// per-slot aggregate buckets and deletes them, all inside one transaction,
// so readers see either the pre- or post-compaction state. Running it again
// with no new appends is a no-op: it only ever touches raw records, never
// existing buckets.
func (s *Store) Compact(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compactLocked(now)
}

func (s *Store) compactLocked(now time.Time) error {
	cutoff := now.Add(-s.policy.Retention).UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin compaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT location_id, observed_at, result
		FROM observations
		WHERE observed_at < ?
	`, cutoff)
	if err != nil {
		return fmt.Errorf("select aged observations: %w", err)
	}

	type bucketKey struct {
		locationID string
		slotKey    string
	}
	buckets := make(map[bucketKey]*models.CompressedBucket)

	for rows.Next() {
		var locationID, result string
		var observedAt time.Time
		if err := rows.Scan(&locationID, &observedAt, &result); err != nil {
			rows.Close()
			return fmt.Errorf("scan aged observation: %w", err)
		}

		// Aggregate at the coarsest granularity: compressed history no
		// longer carries enough detail for finer buckets.
		key := bucketKey{
			locationID: locationID,
			slotKey:    string(timeslot.KeyFor(observedAt.In(s.loc), timeslot.Gran30Min)),
		}
		b, ok := buckets[key]
		if !ok {
			b = &models.CompressedBucket{LocationID: locationID, SlotKey: key.slotKey}
			buckets[key] = b
		}
		b.TotalRecords++
		if models.ObservationResult(result) == models.ResultAvailable {
			b.AvailableCount++
		} else {
			b.OccupiedCount++
		}
		if observedAt.After(b.LastTimestamp) {
			b.LastTimestamp = observedAt
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate aged observations: %w", err)
	}
	rows.Close()

	if len(buckets) == 0 {
		return nil
	}

	for _, b := range buckets {
		if _, err := tx.Exec(`
			INSERT INTO compressed_buckets (location_id, slot_key, total_records, available_count, occupied_count, last_timestamp)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(location_id, slot_key) DO UPDATE SET
				total_records = total_records + excluded.total_records,
				available_count = available_count + excluded.available_count,
				occupied_count = occupied_count + excluded.occupied_count,
				last_timestamp = MAX(last_timestamp, excluded.last_timestamp)
		`, b.LocationID, b.SlotKey, b.TotalRecords, b.AvailableCount, b.OccupiedCount, b.LastTimestamp); err != nil {
			return fmt.Errorf("upsert bucket %s/%s: %w", b.LocationID, b.SlotKey, err)
		}
	}

	res, err := tx.Exec(`DELETE FROM observations WHERE observed_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("delete compacted observations: %w", err)
	}
	deleted, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit compaction: %w", err)
	}

	metrics.CompactionRuns.Inc()
	metrics.ObservationsCompacted.Add(float64(deleted))
	return nil
}
