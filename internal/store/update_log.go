package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/programhub/apiserver/types"
)

// UpdateLogRepository handles persistence for the activity log. Entries
// are only ever inserted.
type UpdateLogRepository struct {
	db *sql.DB
}

func NewUpdateLogRepository(db *sql.DB) *UpdateLogRepository {
	return &UpdateLogRepository{db: db}
}

func (r *UpdateLogRepository) Create(ctx context.Context, entry types.UpdateLog) (types.UpdateLog, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()

	var metadata any
	if len(entry.Metadata) > 0 {
		metadata = []byte(entry.Metadata)
	}

	const query = `
		INSERT INTO update_logs (id, type, message, user_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		entry.ID,
		string(entry.Type),
		entry.Message,
		entry.UserID,
		metadata,
		entry.CreatedAt,
	); err != nil {
		return types.UpdateLog{}, err
	}
	return entry, nil
}

// List returns a page of entries, newest first, with the acting user
// populated when the account still exists.
func (r *UpdateLogRepository) List(ctx context.Context, offset, limit int) ([]types.UpdateLog, int, error) {
	const countQuery = `SELECT COUNT(1) FROM update_logs`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	entries, err := r.list(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Recent returns the newest limit entries.
func (r *UpdateLogRepository) Recent(ctx context.Context, limit int) ([]types.UpdateLog, error) {
	return r.list(ctx, 0, limit)
}

func (r *UpdateLogRepository) list(ctx context.Context, offset, limit int) ([]types.UpdateLog, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	query, args, err := psql.Select(
		"l.id", "l.type", "l.message", "l.user_id", "l.metadata", "l.created_at",
		"u.id", "u.name", "u.email", "u.role",
	).
		From("update_logs l").
		LeftJoin("users u ON u.id = l.user_id").
		OrderBy("l.created_at DESC", "l.id DESC").
		Offset(uint64(offset)).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]types.UpdateLog, 0, limit)
	for rows.Next() {
		var (
			entry    types.UpdateLog
			logType  string
			metadata []byte
			userID   uuid.NullUUID
			name     sql.NullString
			email    sql.NullString
			role     sql.NullString
		)
		if err := rows.Scan(
			&entry.ID,
			&logType,
			&entry.Message,
			&entry.UserID,
			&metadata,
			&entry.CreatedAt,
			&userID,
			&name,
			&email,
			&role,
		); err != nil {
			return nil, err
		}
		entry.Type = types.LogType(logType)
		if len(metadata) > 0 {
			entry.Metadata = json.RawMessage(metadata)
		}
		if userID.Valid {
			entry.User = &types.UserRef{
				ID:    userID.UUID,
				Name:  name.String,
				Email: email.String,
				Role:  role.String,
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
