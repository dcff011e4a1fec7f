package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rajivgeraev/sendix-api/internal/apperr"
	"github.com/rajivgeraev/sendix-api/internal/models"
)

const userColumns = `id, email, name, role, telegram_id`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var telegramID pgtype.Int8

	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &telegramID); err != nil {
		return nil, err
	}
	// Преобразуем nullable поля
	if telegramID.Valid {
		u.TelegramID = telegramID.Int64
	}
	return &u, nil
}

// GetUser получает пользователя по ID
func (r *repo) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	return u, wrapErr(err, "пользователь "+id)
}

// GetUserByTelegramID получает пользователя по ID Telegram
func (r *repo) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	u, err := scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID))
	return u, wrapErr(err, "пользователь Telegram")
}

const loadColumns = `l.id, l.owner_id, l.origin, l.destination, l.cargo_type, l.quantity, l.unit,
	l.dimensions, l.weight, l.volume, l.scheduled_at, l.description, l.attachments, l.created_at`

func scanLoad(row pgx.Row) (*models.Load, error) {
	var l models.Load
	err := row.Scan(
		&l.ID, &l.OwnerID, &l.Origin, &l.Destination, &l.CargoType, &l.Quantity, &l.Unit,
		&l.Dimensions, &l.Weight, &l.Volume, &l.ScheduledAt, &l.Description, &l.Attachments, &l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateLoad сохраняет груз
func (r *repo) CreateLoad(ctx context.Context, l *models.Load) error {
	var attachments any
	if len(l.Attachments) > 0 {
		attachments = l.Attachments
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO loads (id, owner_id, origin, destination, cargo_type, quantity, unit,
			dimensions, weight, volume, scheduled_at, description, attachments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, l.ID, l.OwnerID, l.Origin, l.Destination, l.CargoType, l.Quantity, l.Unit,
		l.Dimensions, l.Weight, l.Volume, l.ScheduledAt, l.Description, attachments, l.CreatedAt)
	return wrapErr(err, "создание груза")
}

// GetLoad получает груз по ID
func (r *repo) GetLoad(ctx context.Context, id string) (*models.Load, error) {
	l, err := scanLoad(r.q.QueryRow(ctx, `SELECT `+loadColumns+` FROM loads l WHERE l.id = $1`, id))
	return l, wrapErr(err, "груз "+id)
}

// LockLoad получает груз с блокировкой строки до конца транзакции
func (r *repo) LockLoad(ctx context.Context, id string) (*models.Load, error) {
	l, err := scanLoad(r.q.QueryRow(ctx, `SELECT `+loadColumns+` FROM loads l WHERE l.id = $1 FOR UPDATE`, id))
	return l, wrapErr(err, "груз "+id)
}

// UpdateLoad обновляет описательные поля груза
func (r *repo) UpdateLoad(ctx context.Context, l *models.Load) error {
	var attachments any
	if len(l.Attachments) > 0 {
		attachments = l.Attachments
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE loads SET origin = $2, destination = $3, cargo_type = $4, quantity = $5, unit = $6,
			dimensions = $7, weight = $8, volume = $9, scheduled_at = $10, description = $11, attachments = $12
		WHERE id = $1
	`, l.ID, l.Origin, l.Destination, l.CargoType, l.Quantity, l.Unit,
		l.Dimensions, l.Weight, l.Volume, l.ScheduledAt, l.Description, attachments)
	if err != nil {
		return wrapErr(err, "обновление груза")
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ListLoads получает грузы, свежие сверху
func (r *repo) ListLoads(ctx context.Context, f models.LoadFilter) ([]models.Load, error) {
	var w whereBuilder
	if f.OwnerEmail != "" {
		w.add("lower(u.email) = lower($%d)", f.OwnerEmail)
	}

	rows, err := r.q.Query(ctx, `
		SELECT `+loadColumns+`
		FROM loads l
		JOIN users u ON u.id = l.owner_id`+w.sql()+`
		ORDER BY l.created_at DESC, l.id DESC
	`, w.args...)
	if err != nil {
		return nil, wrapErr(err, "список грузов")
	}
	defer rows.Close()

	out := []models.Load{}
	for rows.Next() {
		l, err := scanLoad(rows)
		if err != nil {
			return nil, wrapErr(err, "чтение груза")
		}
		out = append(out, *l)
	}
	return out, wrapErr(rows.Err(), "список грузов")
}
