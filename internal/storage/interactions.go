package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/khanglvm/kimo/internal/errs"
	"github.com/khanglvm/kimo/internal/logger"
)

// RecordInteractions appends events in a single transaction.
func (s *SQLiteStorage) RecordInteractions(ctx context.Context, events []Interaction) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.conn()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return wrapWriteErr("failed to begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO interactions (id, type, url, query, entities, duration_ms, metadata, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		entities := e.Entities
		if entities == nil {
			entities = []string{}
		}
		metadata := e.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}

		if _, err := stmt.ExecContext(ctx,
			e.ID,
			e.Type,
			e.URL,
			e.Query,
			s.encodeJSON(entities, "[]"),
			e.Duration.Milliseconds(),
			s.encodeJSON(metadata, "{}"),
			e.Timestamp.UnixMilli(),
		); err != nil {
			return wrapWriteErr("failed to record interaction "+e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapWriteErr("failed to commit interactions", err)
	}
	return nil
}

// InteractionsSince returns events with Timestamp >= since, oldest first.
// Query failures are reported as *errs.HistoryReadError.
func (s *SQLiteStorage) InteractionsSince(ctx context.Context, since time.Time) ([]Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, type, url, query, entities, duration_ms, metadata, timestamp
		FROM interactions
		WHERE timestamp >= ?
		ORDER BY timestamp ASC, rowid ASC
	`, since.UnixMilli())
	if err != nil {
		return nil, &errs.HistoryReadError{Op: "query", Err: err}
	}
	defer rows.Close()

	events := make([]Interaction, 0)
	for rows.Next() {
		var (
			e            Interaction
			entitiesJSON string
			metadataJSON string
			durationMS   int64
			tsMS         int64
		)

		if err := rows.Scan(&e.ID, &e.Type, &e.URL, &e.Query, &entitiesJSON, &durationMS, &metadataJSON, &tsMS); err != nil {
			return nil, &errs.HistoryReadError{Op: "scan", Err: err}
		}

		if err := json.Unmarshal([]byte(entitiesJSON), &e.Entities); err != nil {
			s.log.Warn("skipping interaction with bad entities", logger.String("id", e.ID), logger.Error(err))
			continue
		}
		if err := json.Unmarshal([]byte(metadataJSON), &e.Metadata); err != nil {
			s.log.Warn("skipping interaction with bad metadata", logger.String("id", e.ID), logger.Error(err))
			continue
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		e.Timestamp = time.UnixMilli(tsMS)

		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, &errs.HistoryReadError{Op: "iterate", Err: err}
	}

	return events, nil
}

// DeleteInteractionsBefore removes events older than cutoff in one statement.
func (s *SQLiteStorage) DeleteInteractionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.execCount(ctx, "DELETE FROM interactions WHERE timestamp < ?", cutoff.UnixMilli())
}

// ClearInteractions removes every event.
func (s *SQLiteStorage) ClearInteractions(ctx context.Context) (int64, error) {
	return s.execCount(ctx, "DELETE FROM interactions")
}

func (s *SQLiteStorage) execCount(ctx context.Context, query string, args ...any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.conn()
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrapWriteErr("failed to execute delete", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}
