package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rajivgeraev/sendix-api/internal/apperr"
	"github.com/rajivgeraev/sendix-api/internal/models"
)

const threadColumns = `id, load_id, carrier_id, proposal_id, created_at`

func scanThread(row pgx.Row) (*models.Thread, error) {
	var t models.Thread
	if err := row.Scan(&t.ID, &t.LoadID, &t.CarrierID, &t.ProposalID, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateThread создает чат пары (груз, перевозчик); повтор пары не прерывает транзакцию
func (r *repo) CreateThread(ctx context.Context, t *models.Thread) error {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO threads (id, load_id, carrier_id, proposal_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (load_id, carrier_id) DO NOTHING
	`, t.ID, t.LoadID, t.CarrierID, t.ProposalID, t.CreatedAt)
	if err != nil {
		return wrapErr(err, "создание чата")
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrDuplicate
	}
	return nil
}

// GetThread получает чат по ID
func (r *repo) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	t, err := scanThread(r.q.QueryRow(ctx, `SELECT `+threadColumns+` FROM threads WHERE id = $1`, id))
	return t, wrapErr(err, "чат "+id)
}

// GetThreadByPair получает чат пары (груз, перевозчик)
func (r *repo) GetThreadByPair(ctx context.Context, loadID, carrierID string) (*models.Thread, error) {
	t, err := scanThread(r.q.QueryRow(ctx, `
		SELECT `+threadColumns+` FROM threads WHERE load_id = $1 AND carrier_id = $2
	`, loadID, carrierID))
	return t, wrapErr(err, "чат груза "+loadID)
}

// AttachThread привязывает чат к текущему одобренному предложению
func (r *repo) AttachThread(ctx context.Context, threadID, proposalID string) error {
	tag, err := r.q.Exec(ctx, `UPDATE threads SET proposal_id = $2 WHERE id = $1`, threadID, proposalID)
	if err != nil {
		return wrapErr(err, "привязка чата")
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

const messageColumns = `id, thread_id, from_user_id, text, reply_to_id, attachments, system, created_at`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	err := row.Scan(&m.ID, &m.ThreadID, &m.FromUserID, &m.Text, &m.ReplyToID, &m.Attachments, &m.System, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	if m.Attachments == nil {
		m.Attachments = []models.Attachment{}
	}
	return &m, nil
}

// CreateMessage сохраняет сообщение; вложения хранятся в JSONB
func (r *repo) CreateMessage(ctx context.Context, m *models.Message) error {
	attachments := m.Attachments
	if attachments == nil {
		attachments = []models.Attachment{}
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO messages (id, thread_id, from_user_id, text, reply_to_id, attachments, system, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.ID, m.ThreadID, m.FromUserID, m.Text, m.ReplyToID, attachments, m.System, m.CreatedAt)
	return wrapErr(err, "создание сообщения")
}

// GetMessage получает сообщение по ID
func (r *repo) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	m, err := scanMessage(r.q.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
	return m, wrapErr(err, "сообщение "+id)
}

// ListMessages получает сообщения чата в порядке создания
func (r *repo) ListMessages(ctx context.Context, threadID string) ([]models.Message, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE thread_id = $1
		ORDER BY created_at ASC, id ASC
	`, threadID)
	if err != nil {
		return nil, wrapErr(err, "список сообщений")
	}
	defer rows.Close()

	out := []models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, wrapErr(err, "чтение сообщения")
		}
		out = append(out, *m)
	}
	return out, wrapErr(rows.Err(), "список сообщений")
}

// UpsertRead сдвигает отметку прочтения только вперёд
func (r *repo) UpsertRead(ctx context.Context, threadID, userID string, at time.Time) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO reads (thread_id, user_id, last_read_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (thread_id, user_id)
		DO UPDATE SET last_read_at = GREATEST(reads.last_read_at, EXCLUDED.last_read_at)
	`, threadID, userID, at)
	return wrapErr(err, "отметка прочтения")
}

// GetRead получает отметку прочтения пользователя
func (r *repo) GetRead(ctx context.Context, threadID, userID string) (*models.Read, error) {
	var rd models.Read
	err := r.q.QueryRow(ctx, `
		SELECT thread_id, user_id, last_read_at FROM reads WHERE thread_id = $1 AND user_id = $2
	`, threadID, userID).Scan(&rd.ThreadID, &rd.UserID, &rd.LastReadAt)
	if err != nil {
		return nil, wrapErr(err, "отметка прочтения")
	}
	return &rd, nil
}
