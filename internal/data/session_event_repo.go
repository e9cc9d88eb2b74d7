package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edusuite/portal/internal/data/pgxutil"
	domainauth "github.com/edusuite/portal/internal/domain/auth"
	apperrors "github.com/edusuite/portal/internal/errors"
	"github.com/edusuite/portal/internal/ports"
)

// SessionEventRepo persists the session audit trail (sign-ins, sign-outs,
// refreshes, expiries, mismatches) in PostgreSQL.
type SessionEventRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewSessionEventRepo creates a new SessionEventRepo with the given database
// connection.
func NewSessionEventRepo(db *sql.DB) *SessionEventRepo {
	return &SessionEventRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

const sessionEventColumns = `id, kind, identifier, mode, path, occurred_at`

// Record inserts one session lifecycle event.
func (r *SessionEventRepo) Record(ctx context.Context, ev domainauth.SessionEvent) error {
	if ev.ID == "" {
		return apperrors.ValidationField("id", "event id is required")
	}
	if ev.Kind == "" {
		return apperrors.ValidationField("kind", "event kind is required")
	}
	if ev.Identifier == "" {
		return apperrors.ValidationField("identifier", "event identifier is required")
	}

	occurredAt := ev.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = r.timeProvider.Now()
	}

	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `
			INSERT INTO session_events (id, kind, identifier, mode, path, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, ev.ID, string(ev.Kind), strings.ToLower(ev.Identifier), string(ev.Mode), ev.Path, occurredAt.UTC())
		return err
	}); err != nil {
		return apperrors.MapDBError(fmt.Errorf("record session event: %w", err))
	}
	return nil
}

// RecentByIdentifier returns the newest events for one identifier, newest
// first.
func (r *SessionEventRepo) RecentByIdentifier(
	ctx context.Context,
	identifier string,
	limit int,
) ([]domainauth.SessionEvent, error) {
	if strings.TrimSpace(identifier) == "" {
		return nil, apperrors.ValidationField("identifier", "identifier is required")
	}
	if limit <= 0 {
		limit = 50
	}

	var out []domainauth.SessionEvent
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+sessionEventColumns+` FROM session_events
			WHERE identifier = $1
			ORDER BY occurred_at DESC, id DESC
			LIMIT $2
		`, strings.ToLower(identifier), limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var ev domainauth.SessionEvent
			var kind, mode string
			if scanErr := rows.Scan(&ev.ID, &kind, &ev.Identifier, &mode, &ev.Path, &ev.OccurredAt); scanErr != nil {
				return scanErr
			}
			ev.Kind = domainauth.EventKind(kind)
			ev.Mode = domainauth.Mode(mode)
			out = append(out, ev)
		}
		return rows.Err()
	}); err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("list session events: %w", err))
	}
	return out, nil
}

// PurgeOlderThan removes events older than the retention window and returns
// how many rows were deleted.
func (r *SessionEventRepo) PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, errors.New("retention must be positive")
	}
	cutoff := r.timeProvider.Now().Add(-retention).UTC()

	var deleted int64
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM session_events WHERE occurred_at < $1`, cutoff)
		if err != nil {
			return err
		}
		deleted = ct.RowsAffected()
		return nil
	}); err != nil {
		return 0, apperrors.MapDBError(fmt.Errorf("purge session events: %w", err))
	}
	return deleted, nil
}

var _ ports.SessionAuditor = (*SessionEventRepo)(nil)
