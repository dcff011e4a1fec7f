package brokerage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rajivgeraev/sendix-api/internal/apperr"
	"github.com/rajivgeraev/sendix-api/internal/models"
)

// NewLoad – данные заявки на перевозку
type NewLoad struct {
	Origin      string
	Destination string
	CargoType   string
	Quantity    *float64
	Unit        string
	Dimensions  string
	Weight      *float64
	Volume      *float64
	ScheduledAt *time.Time
	Description string
	Attachments json.RawMessage
}

// CreateLoad публикует груз от имени грузоотправителя
func (e *Engine) CreateLoad(ctx context.Context, actorID string, in NewLoad) (*models.Load, error) {
	actor, err := e.actor(ctx, e.store, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleShipper {
		return nil, fmt.Errorf("публиковать грузы может только грузоотправитель: %w", apperr.ErrForbidden)
	}
	if strings.TrimSpace(in.Origin) == "" || strings.TrimSpace(in.Destination) == "" || strings.TrimSpace(in.CargoType) == "" {
		return nil, fmt.Errorf("нужны пункт отправления, назначения и тип груза: %w", apperr.ErrValidation)
	}

	l := &models.Load{
		ID:          newID(),
		OwnerID:     actor.ID,
		Origin:      strings.TrimSpace(in.Origin),
		Destination: strings.TrimSpace(in.Destination),
		CargoType:   strings.TrimSpace(in.CargoType),
		Quantity:    in.Quantity,
		Unit:        in.Unit,
		Dimensions:  in.Dimensions,
		Weight:      in.Weight,
		Volume:      in.Volume,
		ScheduledAt: in.ScheduledAt,
		Description: in.Description,
		Attachments: in.Attachments,
		CreatedAt:   e.now(),
	}
	if err := e.store.CreateLoad(ctx, l); err != nil {
		return nil, err
	}
	l.Owner = actor
	return l, nil
}

// LoadPatch – частичное обновление груза; nil означает «не менять».
// Владелец и дата создания груза не редактируются.
type LoadPatch struct {
	Origin      *string
	Destination *string
	CargoType   *string
	Quantity    *float64
	Unit        *string
	Dimensions  *string
	Weight      *float64
	Volume      *float64
	ScheduledAt *time.Time
	Description *string
	Attachments json.RawMessage
}

func (p LoadPatch) empty() bool {
	return p.Origin == nil && p.Destination == nil && p.CargoType == nil &&
		p.Quantity == nil && p.Unit == nil && p.Dimensions == nil &&
		p.Weight == nil && p.Volume == nil && p.ScheduledAt == nil &&
		p.Description == nil && p.Attachments == nil
}

// UpdateLoad меняет описательные поля груза. Доступно только владельцу.
func (e *Engine) UpdateLoad(ctx context.Context, actorID, loadID string, patch LoadPatch) (*models.Load, error) {
	if patch.empty() {
		return nil, fmt.Errorf("нет полей для обновления: %w", apperr.ErrValidation)
	}
	actor, err := e.actor(ctx, e.store, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleShipper {
		return nil, fmt.Errorf("менять груз может только грузоотправитель: %w", apperr.ErrForbidden)
	}

	// обязательные поля нельзя очистить
	required := func(v *string, name string) (string, error) {
		s := strings.TrimSpace(*v)
		if s == "" {
			return "", fmt.Errorf("поле %s не может быть пустым: %w", name, apperr.ErrValidation)
		}
		return s, nil
	}
	for _, v := range []*float64{patch.Quantity, patch.Weight, patch.Volume} {
		if v != nil && *v < 0 {
			return nil, fmt.Errorf("количество, вес и объём не могут быть отрицательными: %w", apperr.ErrValidation)
		}
	}

	var updated *models.Load
	err = e.store.InTx(ctx, func(tx Repository) error {
		l, err := tx.LockLoad(ctx, loadID)
		if err != nil {
			return fmt.Errorf("груз %s: %w", loadID, err)
		}
		if l.OwnerID != actor.ID {
			return fmt.Errorf("груз принадлежит другому владельцу: %w", apperr.ErrForbidden)
		}

		if patch.Origin != nil {
			if l.Origin, err = required(patch.Origin, "origin"); err != nil {
				return err
			}
		}
		if patch.Destination != nil {
			if l.Destination, err = required(patch.Destination, "destination"); err != nil {
				return err
			}
		}
		if patch.CargoType != nil {
			if l.CargoType, err = required(patch.CargoType, "cargoType"); err != nil {
				return err
			}
		}
		if patch.Quantity != nil {
			l.Quantity = patch.Quantity
		}
		if patch.Unit != nil {
			l.Unit = *patch.Unit
		}
		if patch.Dimensions != nil {
			l.Dimensions = *patch.Dimensions
		}
		if patch.Weight != nil {
			l.Weight = patch.Weight
		}
		if patch.Volume != nil {
			l.Volume = patch.Volume
		}
		if patch.ScheduledAt != nil {
			l.ScheduledAt = patch.ScheduledAt
		}
		if patch.Description != nil {
			l.Description = *patch.Description
		}
		if patch.Attachments != nil {
			l.Attachments = patch.Attachments
			if string(patch.Attachments) == "null" {
				l.Attachments = nil
			}
		}

		if err := tx.UpdateLoad(ctx, l); err != nil {
			return err
		}
		updated = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	updated.Owner = actor
	return updated, nil
}

// GetLoad возвращает груз с владельцем
func (e *Engine) GetLoad(ctx context.Context, id string) (*models.Load, error) {
	l, err := e.store.GetLoad(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("груз %s: %w", id, err)
	}
	if owner, err := e.store.GetUser(ctx, l.OwnerID); err == nil {
		l.Owner = owner
	}
	return l, nil
}

// ListLoads возвращает грузы, свежие сверху
func (e *Engine) ListLoads(ctx context.Context, ownerEmail string) ([]models.Load, error) {
	rows, err := e.store.ListLoads(ctx, models.LoadFilter{OwnerEmail: strings.ToLower(ownerEmail)})
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if owner, err := e.store.GetUser(ctx, rows[i].OwnerID); err == nil {
			rows[i].Owner = owner
		}
	}
	return rows, nil
}

// UserByTelegramID находит зарегистрированного пользователя по Telegram ID
func (e *Engine) UserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return e.store.GetUserByTelegramID(ctx, telegramID)
}

// User возвращает пользователя по ID
func (e *Engine) User(ctx context.Context, id string) (*models.User, error) {
	return e.store.GetUser(ctx, id)
}
