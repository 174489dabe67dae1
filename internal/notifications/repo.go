package notifications

import (
	"context"
	"time"

	"github.com/ariefcatur/agro-market/internal/postgres"
)

// Repo is the Postgres outbox. Notify satisfies Sink.
type Repo struct{ DB postgres.DBTX }

func (r Repo) Notify(ctx context.Context, n Notification) error {
	if n.Type == "" {
		n.Type = TypeSystem
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO notifications(id, user_id, title, message, type, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		n.ID, n.UserID, n.Title, n.Message, string(n.Type), n.CreatedAt)
	return err
}

// Unpublished returns up to limit rows not yet handed to the broker, oldest first.
func (r Repo) Unpublished(ctx context.Context, limit int) ([]Notification, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, user_id, title, message, type, is_read, created_at
		FROM notifications
		WHERE published_at IS NULL
		ORDER BY created_at, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var typ string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &typ, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Type = Type(typ)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r Repo) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.DB.Exec(ctx, `UPDATE notifications SET published_at=$2 WHERE id = ANY($1)`, ids, time.Now().UTC())
	return err
}
