package brokerage

import (
	"context"
	"errors"

	"github.com/rajivgeraev/sendix-api/internal/apperr"
	"github.com/rajivgeraev/sendix-api/internal/models"
)

// Field – редактируемое поле предложения
type Field string

const (
	FieldVehicle    Field = "vehicle"
	FieldPrice      Field = "price"
	FieldShipStatus Field = "shipStatus"
	FieldStatus     Field = "status"
)

// editMatrix – таблица (роль, поле) → разрешено.
// Проверяется до применения любого частичного обновления.
var editMatrix = map[models.Role]map[Field]bool{
	models.RoleCarrier: {
		FieldVehicle:    true,
		FieldPrice:      true,
		FieldShipStatus: true,
	},
	models.RoleShipper: {
		FieldShipStatus: true,
	},
	models.RoleModerator: {
		FieldShipStatus: true,
		FieldStatus:     true,
	},
}

// CanEdit сообщает, может ли роль менять поле предложения
func CanEdit(role models.Role, field Field) bool {
	return editMatrix[role][field]
}

// canAccess – доступ пользователя к предложению: модератор всегда,
// владелец груза и перевозчик предложения
func canAccess(u *models.User, load *models.Load, p *models.Proposal) bool {
	switch u.Role {
	case models.RoleModerator:
		return true
	case models.RoleShipper:
		return load != nil && load.OwnerID == u.ID
	case models.RoleCarrier:
		return p.CarrierID == u.ID
	}
	return false
}

// UserCanAccessProposal проверяет доступ пользователя к комнате предложения
func (e *Engine) UserCanAccessProposal(ctx context.Context, userID, proposalID string) (bool, error) {
	u, err := e.actor(ctx, e.store, userID)
	if err != nil {
		return false, err
	}
	p, err := e.store.GetProposal(ctx, proposalID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	load, err := e.store.GetLoad(ctx, p.LoadID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return false, err
	}
	return canAccess(u, load, p), nil
}
