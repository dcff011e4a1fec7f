package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/rajivgeraev/sendix-api/internal/apperr"
	"github.com/rajivgeraev/sendix-api/internal/models"
)

const proposalColumns = `p.id, p.load_id, p.carrier_id, p.vehicle, p.price, p.status, p.ship_status, p.created_at, p.updated_at`

func scanProposal(row pgx.Row) (*models.Proposal, error) {
	var p models.Proposal
	err := row.Scan(&p.ID, &p.LoadID, &p.CarrierID, &p.Vehicle, &p.Price, &p.Status, &p.ShipStatus, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProposal сохраняет предложение
func (r *repo) CreateProposal(ctx context.Context, p *models.Proposal) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO proposals (id, load_id, carrier_id, vehicle, price, status, ship_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.LoadID, p.CarrierID, p.Vehicle, p.Price, p.Status, p.ShipStatus, p.CreatedAt, p.UpdatedAt)
	return wrapErr(err, "создание предложения")
}

// GetProposal получает предложение по ID
func (r *repo) GetProposal(ctx context.Context, id string) (*models.Proposal, error) {
	p, err := scanProposal(r.q.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals p WHERE p.id = $1`, id))
	return p, wrapErr(err, "предложение "+id)
}

// ListProposals получает предложения по фильтру, свежие сверху
func (r *repo) ListProposals(ctx context.Context, f models.ProposalFilter) ([]models.Proposal, error) {
	var w whereBuilder
	if f.LoadID != "" {
		w.add("p.load_id = $%d", f.LoadID)
	}
	if f.CarrierID != "" {
		w.add("p.carrier_id = $%d", f.CarrierID)
	}
	if f.Status != "" {
		w.add("p.status = $%d", f.Status)
	}
	if f.OwnerID != "" {
		w.add("l.owner_id = $%d", f.OwnerID)
	}
	if f.OwnerEmail != "" {
		w.add("lower(o.email) = lower($%d)", f.OwnerEmail)
	}
	if f.CarrierEmail != "" {
		w.add("lower(c.email) = lower($%d)", f.CarrierEmail)
	}

	rows, err := r.q.Query(ctx, `
		SELECT `+proposalColumns+`
		FROM proposals p
		JOIN loads l ON l.id = p.load_id
		JOIN users o ON o.id = l.owner_id
		JOIN users c ON c.id = p.carrier_id`+w.sql()+`
		ORDER BY p.created_at DESC, p.id DESC
	`, w.args...)
	if err != nil {
		return nil, wrapErr(err, "список предложений")
	}
	defer rows.Close()

	out := []models.Proposal{}
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, wrapErr(err, "чтение предложения")
		}
		out = append(out, *p)
	}
	return out, wrapErr(rows.Err(), "список предложений")
}

// UpdateProposal сохраняет изменяемые поля предложения
func (r *repo) UpdateProposal(ctx context.Context, p *models.Proposal) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE proposals
		SET vehicle = $2, price = $3, status = $4, ship_status = $5, updated_at = $6
		WHERE id = $1
	`, p.ID, p.Vehicle, p.Price, p.Status, p.ShipStatus, p.UpdatedAt)
	if err != nil {
		return wrapErr(err, "обновление предложения")
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// RejectSiblings отклоняет остальные неодобренные предложения по грузу
func (r *repo) RejectSiblings(ctx context.Context, loadID, exceptID string) (int64, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE proposals
		SET status = 'rejected', updated_at = date_trunc('microseconds', CURRENT_TIMESTAMP)
		WHERE load_id = $1 AND id <> $2 AND status IN ('pending', 'filtered')
	`, loadID, exceptID)
	if err != nil {
		return 0, wrapErr(err, "отклонение предложений")
	}
	return tag.RowsAffected(), nil
}

const commissionColumns = `k.id, k.proposal_id, k.rate, k.amount, k.status, k.created_at, k.invoice_at`

func scanCommission(row pgx.Row) (*models.Commission, error) {
	var c models.Commission
	if err := row.Scan(&c.ID, &c.ProposalID, &c.Rate, &c.Amount, &c.Status, &c.CreatedAt, &c.InvoiceAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCommission сохраняет комиссию; повтор proposal_id не прерывает транзакцию
func (r *repo) CreateCommission(ctx context.Context, c *models.Commission) error {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO commissions (id, proposal_id, rate, amount, status, created_at, invoice_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (proposal_id) DO NOTHING
	`, c.ID, c.ProposalID, c.Rate, c.Amount, c.Status, c.CreatedAt, c.InvoiceAt)
	if err != nil {
		return wrapErr(err, "создание комиссии")
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrDuplicate
	}
	return nil
}

// GetCommission получает комиссию по ID
func (r *repo) GetCommission(ctx context.Context, id string) (*models.Commission, error) {
	c, err := scanCommission(r.q.QueryRow(ctx, `SELECT `+commissionColumns+` FROM commissions k WHERE k.id = $1`, id))
	return c, wrapErr(err, "комиссия "+id)
}

// GetCommissionByProposal получает комиссию предложения
func (r *repo) GetCommissionByProposal(ctx context.Context, proposalID string) (*models.Commission, error) {
	c, err := scanCommission(r.q.QueryRow(ctx, `SELECT `+commissionColumns+` FROM commissions k WHERE k.proposal_id = $1`, proposalID))
	return c, wrapErr(err, "комиссия предложения "+proposalID)
}

// UpdateCommission сохраняет статус и дату счёта
func (r *repo) UpdateCommission(ctx context.Context, c *models.Commission) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE commissions SET status = $2, invoice_at = $3 WHERE id = $1
	`, c.ID, c.Status, c.InvoiceAt)
	if err != nil {
		return wrapErr(err, "обновление комиссии")
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ListCommissions получает журнал комиссий по фильтру
func (r *repo) ListCommissions(ctx context.Context, f models.CommissionFilter) ([]models.Commission, error) {
	var w whereBuilder
	if f.Status != "" {
		w.add("k.status = $%d", f.Status)
	}
	if f.OwnerID != "" {
		w.add("l.owner_id = $%d", f.OwnerID)
	}
	if f.CarrierID != "" {
		w.add("p.carrier_id = $%d", f.CarrierID)
	}
	if f.OwnerEmail != "" {
		w.add("lower(o.email) = lower($%d)", f.OwnerEmail)
	}
	if f.CarrierEmail != "" {
		w.add("lower(c.email) = lower($%d)", f.CarrierEmail)
	}
	if f.From != nil {
		w.add("COALESCE(k.invoice_at, k.created_at) >= $%d", *f.From)
	}
	if f.To != nil {
		w.add("COALESCE(k.invoice_at, k.created_at) < $%d", *f.To)
	}

	rows, err := r.q.Query(ctx, `
		SELECT `+commissionColumns+`
		FROM commissions k
		JOIN proposals p ON p.id = k.proposal_id
		JOIN loads l ON l.id = p.load_id
		JOIN users o ON o.id = l.owner_id
		JOIN users c ON c.id = p.carrier_id`+w.sql()+`
		ORDER BY k.created_at DESC, k.id DESC
	`, w.args...)
	if err != nil {
		return nil, wrapErr(err, "журнал комиссий")
	}
	defer rows.Close()

	out := []models.Commission{}
	for rows.Next() {
		c, err := scanCommission(rows)
		if err != nil {
			return nil, wrapErr(err, "чтение комиссии")
		}
		out = append(out, *c)
	}
	return out, wrapErr(rows.Err(), "журнал комиссий")
}
