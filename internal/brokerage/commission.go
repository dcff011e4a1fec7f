package brokerage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rajivgeraev/sendix-api/internal/apperr"
	"github.com/rajivgeraev/sendix-api/internal/models"
)

// Срезы отчётного месяца
const (
	CutFull = "full" // весь месяц
	CutQ1   = "q1"   // с 1 по 15 число
	CutQ2   = "q2"   // с 16 числа до конца месяца
)

// CommissionQuery – фильтры журнала комиссий из API
type CommissionQuery struct {
	Status       models.CommissionStatus
	OwnerEmail   string
	CarrierEmail string
	Period       string // YYYY-MM
	Cut          string
}

// PeriodRange возвращает [start, end) для месяца ym и среза cut
func PeriodRange(ym, cut string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	month, err := time.ParseInLocation("2006-01", ym, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("период %q: ожидается YYYY-MM: %w", ym, apperr.ErrValidation)
	}
	start := month
	end := start.AddDate(0, 1, 0)
	mid := time.Date(start.Year(), start.Month(), 16, 0, 0, 0, 0, loc)

	switch cut {
	case "", CutFull:
		return start, end, nil
	case CutQ1:
		return start, mid, nil
	case CutQ2:
		return mid, end, nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("срез %q: ожидается full, q1 или q2: %w", cut, apperr.ErrValidation)
}

// MarkInvoiced переводит комиссию pending → invoiced (модератор)
func (e *Engine) MarkInvoiced(ctx context.Context, actorID, commissionID string, invoiceAt *time.Time) (*models.Commission, error) {
	actor, err := e.actor(ctx, e.store, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleModerator {
		return nil, fmt.Errorf("выставлять счета может только модератор: %w", apperr.ErrForbidden)
	}

	var out *models.Commission
	err = e.store.InTx(ctx, func(tx Repository) error {
		c, err := tx.GetCommission(ctx, commissionID)
		if err != nil {
			return fmt.Errorf("комиссия %s: %w", commissionID, err)
		}
		if c.Status == models.CommissionInvoiced {
			return fmt.Errorf("комиссия уже выставлена: %w", apperr.ErrInvalidTransition)
		}
		at := e.now()
		if invoiceAt != nil {
			at = invoiceAt.UTC().Truncate(time.Microsecond)
		}
		c.Status = models.CommissionInvoiced
		c.InvoiceAt = &at
		if err := tx.UpdateCommission(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListCommissions возвращает журнал комиссий в пределах видимости роли
func (e *Engine) ListCommissions(ctx context.Context, actorID string, q CommissionQuery) ([]models.CommissionView, error) {
	actor, err := e.actor(ctx, e.store, actorID)
	if err != nil {
		return nil, err
	}
	if q.Status != "" && q.Status != models.CommissionPending && q.Status != models.CommissionInvoiced {
		return nil, fmt.Errorf("неизвестный статус комиссии %q: %w", q.Status, apperr.ErrValidation)
	}

	f := models.CommissionFilter{
		Status:       q.Status,
		OwnerEmail:   strings.ToLower(q.OwnerEmail),
		CarrierEmail: strings.ToLower(q.CarrierEmail),
	}
	switch actor.Role {
	case models.RoleShipper:
		f.OwnerID = actor.ID
	case models.RoleCarrier:
		f.CarrierID = actor.ID
	}
	if q.Period != "" {
		from, to, err := PeriodRange(q.Period, q.Cut, time.UTC)
		if err != nil {
			return nil, err
		}
		f.From, f.To = &from, &to
	}

	rows, err := e.store.ListCommissions(ctx, f)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })

	users := map[string]*models.User{}
	user := func(id string) (*models.User, error) {
		if u, ok := users[id]; ok {
			return u, nil
		}
		u, err := e.store.GetUser(ctx, id)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		users[id] = u
		return u, nil
	}

	views := make([]models.CommissionView, 0, len(rows))
	for _, c := range rows {
		p, err := e.store.GetProposal(ctx, c.ProposalID)
		if err != nil {
			return nil, fmt.Errorf("предложение %s комиссии %s: %w", c.ProposalID, c.ID, err)
		}
		v := models.CommissionView{Commission: c, LoadID: p.LoadID, Price: p.Price, CarrierID: p.CarrierID}
		if v.Carrier, err = user(p.CarrierID); err != nil {
			return nil, err
		}
		if load, err := e.store.GetLoad(ctx, p.LoadID); err == nil {
			if v.Owner, err = user(load.OwnerID); err != nil {
				return nil, err
			}
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// CommissionSummary – итоги для панели модератора: ожидающие и выставленные за 30 дней
func (e *Engine) CommissionSummary(ctx context.Context, actorID string) (*models.CommissionSummary, error) {
	actor, err := e.actor(ctx, e.store, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleModerator {
		return nil, fmt.Errorf("сводка доступна только модератору: %w", apperr.ErrForbidden)
	}

	rows, err := e.store.ListCommissions(ctx, models.CommissionFilter{})
	if err != nil {
		return nil, err
	}
	since := e.now().Add(-30 * 24 * time.Hour)
	sum := &models.CommissionSummary{Count: len(rows)}
	for _, c := range rows {
		switch c.Status {
		case models.CommissionPending:
			sum.PendingAmount += c.Amount
		case models.CommissionInvoiced:
			if c.InvoiceAt != nil && !c.InvoiceAt.Before(since) {
				sum.InvoicedLast30Days += c.Amount
			}
		}
	}
	return sum, nil
}
