package brokerage

import (
	"context"
	"errors"
	"fmt"

	"github.com/rajivgeraev/sendix-api/internal/apperr"
	"github.com/rajivgeraev/sendix-api/internal/models"
)

// GetOrCreateThread возвращает чат одобренного предложения.
// disabled=true (без чата), пока предложение не одобрено.
func (e *Engine) GetOrCreateThread(ctx context.Context, proposalID string) (thread *models.Thread, disabled bool, err error) {
	p, err := e.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, false, fmt.Errorf("предложение %s: %w", proposalID, err)
	}
	if p.Status != models.ProposalApproved {
		return nil, true, nil
	}

	t, err := e.store.GetThreadByPair(ctx, p.LoadID, p.CarrierID)
	if err == nil && t.ProposalID != nil && *t.ProposalID == p.ID {
		return t, false, nil
	}
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, false, err
	}

	err = e.store.InTx(ctx, func(tx Repository) error {
		if _, err := tx.LockLoad(ctx, p.LoadID); err != nil {
			return err
		}
		cur, err := tx.GetProposal(ctx, proposalID)
		if err != nil {
			return err
		}
		if cur.Status != models.ProposalApproved {
			disabled = true
			return nil
		}
		thread, err = e.ensureThread(ctx, tx, cur)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return thread, disabled, nil
}

// ensureThread находит чат пары (груз, перевозчик) и привязывает его
// к предложению либо создает новый. История сообщений сохраняется
// между циклами переговоров.
func (e *Engine) ensureThread(ctx context.Context, tx Repository, p *models.Proposal) (*models.Thread, error) {
	t, err := tx.GetThreadByPair(ctx, p.LoadID, p.CarrierID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	if t == nil {
		pid := p.ID
		t = &models.Thread{
			ID:         newID(),
			LoadID:     p.LoadID,
			CarrierID:  p.CarrierID,
			ProposalID: &pid,
			CreatedAt:  e.now(),
		}
		err := tx.CreateThread(ctx, t)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, apperr.ErrDuplicate) {
			return nil, err
		}
		if t, err = tx.GetThreadByPair(ctx, p.LoadID, p.CarrierID); err != nil {
			return nil, err
		}
	}

	if t.ProposalID == nil || *t.ProposalID != p.ID {
		if err := tx.AttachThread(ctx, t.ID, p.ID); err != nil {
			return nil, err
		}
		pid := p.ID
		t.ProposalID = &pid
	}
	return t, nil
}

// chatAccess – проверка доступа к чату предложения и проход через шлюз
type chatAccess struct {
	actor    *models.User
	proposal *models.Proposal
	thread   *models.Thread
	disabled bool
}

func (e *Engine) openChat(ctx context.Context, actorID, proposalID string) (*chatAccess, error) {
	actor, err := e.actor(ctx, e.store, actorID)
	if err != nil {
		return nil, err
	}
	p, err := e.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("предложение %s: %w", proposalID, err)
	}
	load, err := e.store.GetLoad(ctx, p.LoadID)
	if err != nil {
		return nil, fmt.Errorf("груз %s: %w", p.LoadID, err)
	}
	if !canAccess(actor, load, p) {
		return nil, fmt.Errorf("нет доступа к чату предложения: %w", apperr.ErrForbidden)
	}

	t, disabled, err := e.GetOrCreateThread(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	return &chatAccess{actor: actor, proposal: p, thread: t, disabled: disabled}, nil
}
