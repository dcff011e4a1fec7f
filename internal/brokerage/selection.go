package brokerage

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rajivgeraev/sendix-api/internal/apperr"
	"github.com/rajivgeraev/sendix-api/internal/models"
)

// Selection – результат выбора победителя
type Selection struct {
	Proposal   *models.Proposal   `json:"proposal"`
	Thread     *models.Thread     `json:"thread"`
	Commission *models.Commission `json:"commission"`
	Rejected   int64              `json:"rejected"`
}

// MaxPrice – верхняя граница цены, при которой расчёт комиссии не переполняет int64
const MaxPrice int64 = (math.MaxInt64 - 5000) / 10000

// RateBasisPoints переводит ставку в базисные пункты (0.1 -> 1000)
func RateBasisPoints(rate float64) int64 {
	return int64(math.Round(rate * 10000))
}

// NormalizeRate округляет ставку до базисного пункта – ровно с такой
// точностью считается и хранится комиссия.
func NormalizeRate(rate float64) float64 {
	return float64(RateBasisPoints(rate)) / 10000
}

// CommissionAmount считает round(price × rate) с округлением половины вверх.
// Ставка переводится в базисные пункты, чтобы избежать ошибок float, поэтому
// rate должен быть уже нормализован через NormalizeRate.
func CommissionAmount(price int64, rate float64) int64 {
	return (price*RateBasisPoints(rate) + 5000) / 10000
}

// SelectWinner атомарно одобряет предложение, отклоняет остальные по грузу,
// открывает чат и начисляет комиссию. Повторный вызов для уже
// одобренного предложения идемпотентен.
func (e *Engine) SelectWinner(ctx context.Context, actorID, proposalID string) (*Selection, error) {
	actor, err := e.actor(ctx, e.store, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleShipper {
		return nil, fmt.Errorf("выбирать победителя может только владелец груза: %w", apperr.ErrForbidden)
	}

	var sel *Selection
	err = e.store.InTx(ctx, func(tx Repository) error {
		p, err := tx.GetProposal(ctx, proposalID)
		if err != nil {
			return fmt.Errorf("предложение %s: %w", proposalID, err)
		}
		load, err := tx.LockLoad(ctx, p.LoadID)
		if err != nil {
			return fmt.Errorf("груз %s: %w", p.LoadID, err)
		}
		if load.OwnerID != actor.ID {
			return fmt.Errorf("груз принадлежит другому владельцу: %w", apperr.ErrForbidden)
		}
		if p, err = tx.GetProposal(ctx, proposalID); err != nil {
			return err
		}

		out := &Selection{}
		if p.Status != models.ProposalApproved {
			siblings, err := tx.ListProposals(ctx, models.ProposalFilter{LoadID: p.LoadID})
			if err != nil {
				return err
			}
			for _, s := range siblings {
				if s.ID != p.ID && s.Status == models.ProposalApproved {
					return fmt.Errorf("по грузу уже выбрано предложение %s: %w", s.ID, apperr.ErrInvalidTransition)
				}
			}
			if p.Status == models.ProposalRejected {
				return fmt.Errorf("отклонённое предложение нельзя выбрать: %w", apperr.ErrInvalidTransition)
			}

			p.Status = models.ProposalApproved
			if p.ShipStatus == "" {
				p.ShipStatus = models.ShipPending
			}
			p.UpdatedAt = e.now()
			if err := tx.UpdateProposal(ctx, p); err != nil {
				return err
			}
			if out.Rejected, err = tx.RejectSiblings(ctx, p.LoadID, p.ID); err != nil {
				return err
			}
		}

		if out.Thread, err = e.ensureThread(ctx, tx, p); err != nil {
			return err
		}
		if out.Commission, err = e.ensureCommission(ctx, tx, p); err != nil {
			return err
		}
		out.Proposal = p
		sel = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sel, nil
}

// ensureCommission создает комиссию один раз; уникальность proposal_id
// на уровне хранилища защищает от повторов
func (e *Engine) ensureCommission(ctx context.Context, tx Repository, p *models.Proposal) (*models.Commission, error) {
	c, err := tx.GetCommissionByProposal(ctx, p.ID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	c = &models.Commission{
		ID:         newID(),
		ProposalID: p.ID,
		Rate:       e.rate,
		Amount:     CommissionAmount(p.Price, e.rate),
		Status:     models.CommissionPending,
		CreatedAt:  e.now(),
	}
	if err := tx.CreateCommission(ctx, c); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			return tx.GetCommissionByProposal(ctx, p.ID)
		}
		return nil, err
	}
	return c, nil
}
