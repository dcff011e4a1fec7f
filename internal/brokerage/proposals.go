package brokerage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rajivgeraev/sendix-api/internal/apperr"
	"github.com/rajivgeraev/sendix-api/internal/models"
)

// DeliveredNotice – текст системного сообщения о доставке
const DeliveredNotice = "Envío entregado. El transportista confirmó la entrega."

// NewProposal – данные для создания предложения
type NewProposal struct {
	LoadID    string
	CarrierID string
	Vehicle   string
	Price     int64
}

// ProposalPatch – частичное обновление предложения; nil означает «не менять»
type ProposalPatch struct {
	Vehicle    *string
	Price      *int64
	ShipStatus *models.ShipStatus
	Status     *models.ProposalStatus
}

func (p ProposalPatch) fields() []Field {
	var out []Field
	if p.Vehicle != nil {
		out = append(out, FieldVehicle)
	}
	if p.Price != nil {
		out = append(out, FieldPrice)
	}
	if p.ShipStatus != nil {
		out = append(out, FieldShipStatus)
	}
	if p.Status != nil {
		out = append(out, FieldStatus)
	}
	return out
}

// ProposalQuery – фильтры списка предложений из API
type ProposalQuery struct {
	LoadID       string
	OwnerEmail   string
	CarrierEmail string
	Status       models.ProposalStatus
}

// CreateProposal создает предложение перевозчика по грузу
func (e *Engine) CreateProposal(ctx context.Context, actorID string, in NewProposal) (*models.Proposal, error) {
	actor, err := e.actor(ctx, e.store, actorID)
	if err != nil {
		return nil, err
	}

	carrierID := in.CarrierID
	switch actor.Role {
	case models.RoleCarrier:
		if carrierID != "" && carrierID != actor.ID {
			return nil, fmt.Errorf("нельзя подать предложение за другого перевозчика: %w", apperr.ErrForbidden)
		}
		carrierID = actor.ID
	case models.RoleModerator:
		if carrierID == "" {
			return nil, fmt.Errorf("не указан перевозчик: %w", apperr.ErrValidation)
		}
		carrier, err := e.store.GetUser(ctx, carrierID)
		if err != nil {
			return nil, fmt.Errorf("перевозчик %s: %w", carrierID, err)
		}
		if carrier.Role != models.RoleCarrier {
			return nil, fmt.Errorf("пользователь %s не перевозчик: %w", carrierID, apperr.ErrValidation)
		}
	default:
		return nil, fmt.Errorf("предложения подают только перевозчики: %w", apperr.ErrForbidden)
	}

	vehicle := strings.TrimSpace(in.Vehicle)
	if vehicle == "" {
		return nil, fmt.Errorf("не указан транспорт: %w", apperr.ErrValidation)
	}
	if err := checkPrice(in.Price); err != nil {
		return nil, err
	}

	var created *models.Proposal
	err = e.store.InTx(ctx, func(tx Repository) error {
		if _, err := tx.LockLoad(ctx, in.LoadID); err != nil {
			return fmt.Errorf("груз %s: %w", in.LoadID, err)
		}

		existing, err := tx.ListProposals(ctx, models.ProposalFilter{LoadID: in.LoadID})
		if err != nil {
			return err
		}
		for _, p := range existing {
			if p.Status == models.ProposalApproved {
				return fmt.Errorf("по грузу уже выбран перевозчик: %w", apperr.ErrInvalidTransition)
			}
			if p.CarrierID == carrierID && p.Status != models.ProposalRejected {
				return fmt.Errorf("у перевозчика уже есть активное предложение: %w", apperr.ErrDuplicate)
			}
		}

		now := e.now()
		p := &models.Proposal{
			ID:         newID(),
			LoadID:     in.LoadID,
			CarrierID:  carrierID,
			Vehicle:    vehicle,
			Price:      in.Price,
			Status:     models.ProposalPending,
			ShipStatus: models.ShipPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.CreateProposal(ctx, p); err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Filter переводит предложение pending → filtered (модератор)
func (e *Engine) Filter(ctx context.Context, actorID, proposalID string) (*models.Proposal, error) {
	st := models.ProposalFiltered
	return e.UpdateProposal(ctx, actorID, proposalID, ProposalPatch{Status: &st})
}

// Reject переводит предложение pending|filtered → rejected (модератор)
func (e *Engine) Reject(ctx context.Context, actorID, proposalID string) (*models.Proposal, error) {
	st := models.ProposalRejected
	return e.UpdateProposal(ctx, actorID, proposalID, ProposalPatch{Status: &st})
}

// Unfilter возвращает предложение filtered → pending (модератор)
func (e *Engine) Unfilter(ctx context.Context, actorID, proposalID string) (*models.Proposal, error) {
	st := models.ProposalPending
	return e.UpdateProposal(ctx, actorID, proposalID, ProposalPatch{Status: &st})
}

// UpdateShipStatus продвигает статус перевозки на один шаг или повторяет текущий
func (e *Engine) UpdateShipStatus(ctx context.Context, actorID, proposalID string, next models.ShipStatus) (*models.Proposal, error) {
	return e.UpdateProposal(ctx, actorID, proposalID, ProposalPatch{ShipStatus: &next})
}

// nextStatus проверяет переход модерации
func nextStatus(cur, next models.ProposalStatus) error {
	ok := false
	switch next {
	case models.ProposalFiltered:
		ok = cur == models.ProposalPending
	case models.ProposalPending:
		ok = cur == models.ProposalFiltered
	case models.ProposalRejected:
		ok = cur == models.ProposalPending || cur == models.ProposalFiltered
	}
	if !ok {
		return fmt.Errorf("переход %s → %s недопустим: %w", cur, next, apperr.ErrInvalidTransition)
	}
	return nil
}

// nextShipStatus проверяет шаг перевозки: тот же статус или следующий
func nextShipStatus(cur, next models.ShipStatus) (changed bool, err error) {
	if cur == "" {
		cur = models.ShipPending
	}
	if next.Index() < 0 {
		return false, fmt.Errorf("неизвестный статус перевозки %q: %w", next, apperr.ErrValidation)
	}
	if next == cur {
		return false, nil
	}
	if next.Index() != cur.Index()+1 {
		return false, fmt.Errorf("переход перевозки %s → %s недопустим: %w", cur, next, apperr.ErrInvalidTransition)
	}
	return true, nil
}

// UpdateProposal применяет частичное обновление по таблице прав (роль, поле)
func (e *Engine) UpdateProposal(ctx context.Context, actorID, proposalID string, patch ProposalPatch) (*models.Proposal, error) {
	fields := patch.fields()
	if len(fields) == 0 {
		return nil, fmt.Errorf("нет поддерживаемых полей для обновления: %w", apperr.ErrValidation)
	}

	actor, err := e.actor(ctx, e.store, actorID)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		if !CanEdit(actor.Role, f) {
			return nil, fmt.Errorf("роль %s не может менять поле %s: %w", actor.Role, f, apperr.ErrForbidden)
		}
	}
	if patch.ShipStatus != nil && patch.ShipStatus.Index() < 0 {
		return nil, fmt.Errorf("неизвестный статус перевозки %q: %w", *patch.ShipStatus, apperr.ErrValidation)
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("неизвестный статус %q: %w", *patch.Status, apperr.ErrValidation)
	}
	if patch.Status != nil && len(fields) > 1 {
		return nil, fmt.Errorf("статус меняется отдельным запросом: %w", apperr.ErrValidation)
	}

	var (
		updated   *models.Proposal
		shipMoved bool
		notice    *models.Message
	)
	err = e.store.InTx(ctx, func(tx Repository) error {
		p, err := tx.GetProposal(ctx, proposalID)
		if err != nil {
			return fmt.Errorf("предложение %s: %w", proposalID, err)
		}
		load, err := tx.LockLoad(ctx, p.LoadID)
		if err != nil {
			return fmt.Errorf("груз %s: %w", p.LoadID, err)
		}
		// перечитываем под блокировкой груза
		if p, err = tx.GetProposal(ctx, proposalID); err != nil {
			return err
		}
		if !canAccess(actor, load, p) {
			return fmt.Errorf("нет доступа к предложению: %w", apperr.ErrForbidden)
		}

		changed := false

		if patch.Vehicle != nil || patch.Price != nil {
			if p.CarrierID != actor.ID {
				return fmt.Errorf("менять условия может только автор предложения: %w", apperr.ErrForbidden)
			}
			if p.Status != models.ProposalPending && p.Status != models.ProposalFiltered {
				return fmt.Errorf("условия предложения в статусе %s не меняются: %w", p.Status, apperr.ErrInvalidTransition)
			}
			if patch.Vehicle != nil {
				v := strings.TrimSpace(*patch.Vehicle)
				if v == "" {
					return fmt.Errorf("не указан транспорт: %w", apperr.ErrValidation)
				}
				p.Vehicle = v
			}
			if patch.Price != nil {
				if err := checkPrice(*patch.Price); err != nil {
					return err
				}
				p.Price = *patch.Price
			}
			changed = true
		}

		if patch.Status != nil {
			if err := nextStatus(p.Status, *patch.Status); err != nil {
				return err
			}
			p.Status = *patch.Status
			changed = true
		}

		if patch.ShipStatus != nil {
			if p.Status != models.ProposalApproved {
				return fmt.Errorf("статус перевозки доступен только одобренному предложению: %w", apperr.ErrInvalidTransition)
			}
			moved, err := nextShipStatus(p.ShipStatus, *patch.ShipStatus)
			if err != nil {
				return err
			}
			if moved {
				p.ShipStatus = *patch.ShipStatus
				shipMoved = true
				changed = true
			}
		}

		if changed {
			p.UpdatedAt = e.now()
			if err := tx.UpdateProposal(ctx, p); err != nil {
				return err
			}
		}

		if shipMoved && p.ShipStatus == models.ShipDelivered {
			thread, err := e.ensureThread(ctx, tx, p)
			if err != nil {
				return err
			}
			notice, err = e.appendMessage(ctx, tx, thread, actor, DeliveredNotice, nil, nil, true)
			if err != nil {
				return err
			}
		}

		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if shipMoved {
		e.publish(updated.ID, EventShipmentUpdated, ShipmentUpdated{ProposalID: updated.ID, ShipStatus: updated.ShipStatus})
	}
	if notice != nil {
		e.publish(updated.ID, EventMessageCreated, MessageCreated{ProposalID: updated.ID, Message: *notice})
	}
	return updated, nil
}

// GetProposal возвращает предложение, если пользователь имеет к нему доступ
func (e *Engine) GetProposal(ctx context.Context, actorID, proposalID string) (*models.ProposalView, error) {
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
		return nil, fmt.Errorf("нет доступа к предложению: %w", apperr.ErrForbidden)
	}
	views, err := e.resolveProposals(ctx, []models.Proposal{*p})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// ListProposals возвращает предложения в пределах видимости роли
func (e *Engine) ListProposals(ctx context.Context, actorID string, q ProposalQuery) ([]models.ProposalView, error) {
	actor, err := e.actor(ctx, e.store, actorID)
	if err != nil {
		return nil, err
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, fmt.Errorf("неизвестный статус %q: %w", q.Status, apperr.ErrValidation)
	}

	f := models.ProposalFilter{
		LoadID:       q.LoadID,
		OwnerEmail:   strings.ToLower(q.OwnerEmail),
		CarrierEmail: strings.ToLower(q.CarrierEmail),
		Status:       q.Status,
	}
	switch actor.Role {
	case models.RoleShipper:
		f.OwnerID = actor.ID
	case models.RoleCarrier:
		f.CarrierID = actor.ID
	}

	rows, err := e.store.ListProposals(ctx, f)
	if err != nil {
		return nil, err
	}
	return e.resolveProposals(ctx, rows)
}

// resolveProposals дополняет предложения грузом, перевозчиком, комиссией и чатом
func (e *Engine) resolveProposals(ctx context.Context, rows []models.Proposal) ([]models.ProposalView, error) {
	loads := map[string]*models.Load{}
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

	views := make([]models.ProposalView, 0, len(rows))
	for _, p := range rows {
		v := models.ProposalView{Proposal: p}

		load, ok := loads[p.LoadID]
		if !ok {
			l, err := e.store.GetLoad(ctx, p.LoadID)
			if err != nil && !errors.Is(err, apperr.ErrNotFound) {
				return nil, err
			}
			if l != nil {
				if l.Owner, err = user(l.OwnerID); err != nil {
					return nil, err
				}
			}
			loads[p.LoadID] = l
			load = l
		}
		v.Load = load

		carrier, err := user(p.CarrierID)
		if err != nil {
			return nil, err
		}
		v.Carrier = carrier

		c, err := e.store.GetCommissionByProposal(ctx, p.ID)
		switch {
		case err == nil:
			v.Commission = c
		case !errors.Is(err, apperr.ErrNotFound):
			return nil, err
		}

		if p.Status == models.ProposalApproved {
			t, err := e.store.GetThreadByPair(ctx, p.LoadID, p.CarrierID)
			switch {
			case err == nil:
				v.ThreadID = t.ID
			case !errors.Is(err, apperr.ErrNotFound):
				return nil, err
			}
		}

		views = append(views, v)
	}
	return views, nil
}

func checkPrice(price int64) error {
	if price < 0 {
		return fmt.Errorf("цена не может быть отрицательной: %w", apperr.ErrValidation)
	}
	if price > MaxPrice {
		return fmt.Errorf("цена превышает допустимый максимум %d: %w", MaxPrice, apperr.ErrValidation)
	}
	return nil
}
