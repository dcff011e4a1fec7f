package brokerage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/sendix-api/internal/apperr"
	"github.com/rajivgeraev/sendix-api/internal/brokerage"
	"github.com/rajivgeraev/sendix-api/internal/models"
)

func TestCreateLoad(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.CreateLoad(f.ctx, f.carrierA.ID, brokerage.NewLoad{Origin: "a", Destination: "b", CargoType: "c"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.engine.CreateLoad(f.ctx, f.shipper.ID, brokerage.NewLoad{Origin: "a", Destination: " ", CargoType: "c"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	l := f.load(t, f.shipper)
	assert.Equal(t, f.shipper.ID, l.OwnerID)
	f.load(t, f.shipper2)

	got, err := f.engine.GetLoad(f.ctx, l.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Owner)
	assert.Equal(t, "empresa@acme.test", got.Owner.Email)

	all, err := f.engine.ListLoads(f.ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	own, err := f.engine.ListLoads(f.ctx, "EMPRESA@acme.test")
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, l.ID, own[0].ID)

	_, err = f.engine.GetLoad(f.ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateLoad(t *testing.T) {
	f := newFixture(t)
	l := f.load(t, f.shipper)
	w := 1500.0

	updated, err := f.engine.UpdateLoad(f.ctx, f.shipper.ID, l.ID, brokerage.LoadPatch{
		Destination: str("  Córdoba "),
		Weight:      &w,
		Description: str("pallets"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Córdoba", updated.Destination)
	assert.Equal(t, "Buenos Aires", updated.Origin)
	require.NotNil(t, updated.Owner)
	assert.Equal(t, f.shipper.ID, updated.Owner.ID)

	got, err := f.engine.GetLoad(f.ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Córdoba", got.Destination)
	assert.Equal(t, "granos", got.CargoType)
	require.NotNil(t, got.Weight)
	assert.InDelta(t, 1500.0, *got.Weight, 1e-9)
	assert.Equal(t, "pallets", got.Description)
	assert.Equal(t, f.shipper.ID, got.OwnerID)
	assert.Equal(t, l.CreatedAt, got.CreatedAt)

	// чужой грузоотправитель, перевозчик и модератор не редактируют груз
	for _, u := range []models.User{f.shipper2, f.carrierA, f.moderator} {
		_, err = f.engine.UpdateLoad(f.ctx, u.ID, l.ID, brokerage.LoadPatch{Origin: str("Mendoza")})
		assert.ErrorIs(t, err, apperr.ErrForbidden, u.ID)
	}
	got, err = f.engine.GetLoad(f.ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Buenos Aires", got.Origin)

	_, err = f.engine.UpdateLoad(f.ctx, f.shipper.ID, l.ID, brokerage.LoadPatch{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.engine.UpdateLoad(f.ctx, f.shipper.ID, l.ID, brokerage.LoadPatch{CargoType: str(" ")})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	neg := -1.0
	_, err = f.engine.UpdateLoad(f.ctx, f.shipper.ID, l.ID, brokerage.LoadPatch{Volume: &neg})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.engine.UpdateLoad(f.ctx, f.shipper.ID, "missing", brokerage.LoadPatch{Origin: str("Mendoza")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateProposalRules(t *testing.T) {
	f := newFixture(t)
	l := f.load(t, f.shipper)

	_, err := f.engine.CreateProposal(f.ctx, f.shipper.ID, brokerage.NewProposal{LoadID: l.ID, Vehicle: "camión", Price: 10})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.engine.CreateProposal(f.ctx, f.carrierA.ID, brokerage.NewProposal{LoadID: l.ID, CarrierID: f.carrierB.ID, Vehicle: "camión", Price: 10})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.engine.CreateProposal(f.ctx, f.carrierA.ID, brokerage.NewProposal{LoadID: "missing", Vehicle: "camión", Price: 10})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.engine.CreateProposal(f.ctx, f.carrierA.ID, brokerage.NewProposal{LoadID: l.ID, Vehicle: "camión", Price: -1})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.engine.CreateProposal(f.ctx, f.carrierA.ID, brokerage.NewProposal{LoadID: l.ID, Vehicle: "  ", Price: 10})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	p := f.propose(t, l.ID, f.carrierA, 0)
	assert.Equal(t, models.ProposalPending, p.Status)
	assert.Equal(t, models.ShipPending, p.ShipStatus)
	assert.Equal(t, f.carrierA.ID, p.CarrierID)

	_, err = f.engine.CreateProposal(f.ctx, f.carrierA.ID, brokerage.NewProposal{LoadID: l.ID, Vehicle: "camión", Price: 10})
	assert.ErrorIs(t, err, apperr.ErrDuplicate)

	// модератор подаёт предложение за перевозчика
	onBehalf, err := f.engine.CreateProposal(f.ctx, f.moderator.ID, brokerage.NewProposal{LoadID: l.ID, CarrierID: f.carrierB.ID, Vehicle: "camión", Price: 10})
	require.NoError(t, err)
	assert.Equal(t, f.carrierB.ID, onBehalf.CarrierID)

	_, err = f.engine.CreateProposal(f.ctx, f.moderator.ID, brokerage.NewProposal{LoadID: l.ID, CarrierID: f.shipper.ID, Vehicle: "camión", Price: 10})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.engine.SelectWinner(f.ctx, f.shipper.ID, p.ID)
	require.NoError(t, err)

	late := models.User{ID: "u-carrier-late", Email: "late@trans.test", Role: models.RoleCarrier}
	f.store.AddUser(late)
	_, err = f.engine.CreateProposal(f.ctx, late.ID, brokerage.NewProposal{LoadID: l.ID, Vehicle: "camión", Price: 10})
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestCreateProposalAfterRejection(t *testing.T) {
	f := newFixture(t)
	l := f.load(t, f.shipper)
	p := f.propose(t, l.ID, f.carrierA, 100)

	_, err := f.engine.Reject(f.ctx, f.moderator.ID, p.ID)
	require.NoError(t, err)

	again := f.propose(t, l.ID, f.carrierA, 90)
	assert.NotEqual(t, p.ID, again.ID)
}

func TestModerationTransitions(t *testing.T) {
	f := newFixture(t)
	l := f.load(t, f.shipper)
	p := f.propose(t, l.ID, f.carrierA, 100)

	_, err := f.engine.Filter(f.ctx, f.shipper.ID, p.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.engine.Filter(f.ctx, f.carrierA.ID, p.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.engine.Unfilter(f.ctx, f.moderator.ID, p.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	got, err := f.engine.Filter(f.ctx, f.moderator.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalFiltered, got.Status)

	_, err = f.engine.Filter(f.ctx, f.moderator.ID, p.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	got, err = f.engine.Unfilter(f.ctx, f.moderator.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalPending, got.Status)

	got, err = f.engine.Reject(f.ctx, f.moderator.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalRejected, got.Status)

	for _, next := range []models.ProposalStatus{models.ProposalPending, models.ProposalFiltered, models.ProposalRejected} {
		_, err = f.engine.UpdateProposal(f.ctx, f.moderator.ID, p.ID, brokerage.ProposalPatch{Status: status(next)})
		assert.ErrorIs(t, err, apperr.ErrInvalidTransition, next)
	}

	// одобрение только через выбор победителя
	q := f.propose(t, l.ID, f.carrierB, 100)
	_, err = f.engine.UpdateProposal(f.ctx, f.moderator.ID, q.ID, brokerage.ProposalPatch{Status: status(models.ProposalApproved)})
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = f.engine.UpdateProposal(f.ctx, f.moderator.ID, q.ID, brokerage.ProposalPatch{Status: status("archived")})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpdateProposalPermissions(t *testing.T) {
	cases := []struct {
		role  models.Role
		field brokerage.Field
		want  bool
	}{
		{models.RoleCarrier, brokerage.FieldVehicle, true},
		{models.RoleCarrier, brokerage.FieldPrice, true},
		{models.RoleCarrier, brokerage.FieldShipStatus, true},
		{models.RoleCarrier, brokerage.FieldStatus, false},
		{models.RoleShipper, brokerage.FieldVehicle, false},
		{models.RoleShipper, brokerage.FieldPrice, false},
		{models.RoleShipper, brokerage.FieldShipStatus, true},
		{models.RoleShipper, brokerage.FieldStatus, false},
		{models.RoleModerator, brokerage.FieldVehicle, false},
		{models.RoleModerator, brokerage.FieldPrice, false},
		{models.RoleModerator, brokerage.FieldShipStatus, true},
		{models.RoleModerator, brokerage.FieldStatus, true},
		{models.Role("guest"), brokerage.FieldShipStatus, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, brokerage.CanEdit(tc.role, tc.field), "%s/%s", tc.role, tc.field)
	}
}

func TestUpdateProposalTerms(t *testing.T) {
	f := newFixture(t)
	l := f.load(t, f.shipper)
	p := f.propose(t, l.ID, f.carrierA, 100)

	_, err := f.engine.UpdateProposal(f.ctx, f.carrierA.ID, p.ID, brokerage.ProposalPatch{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.engine.UpdateProposal(f.ctx, f.shipper.ID, p.ID, brokerage.ProposalPatch{Price: i64(1)})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.engine.UpdateProposal(f.ctx, f.carrierB.ID, p.ID, brokerage.ProposalPatch{Price: i64(1)})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.engine.UpdateProposal(f.ctx, f.carrierA.ID, p.ID, brokerage.ProposalPatch{Price: i64(-5)})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// смешанный патч отклоняется целиком
	_, err = f.engine.UpdateProposal(f.ctx, f.carrierA.ID, p.ID, brokerage.ProposalPatch{Price: i64(90), Status: status(models.ProposalFiltered)})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Equal(t, int64(100), f.proposal(t, p.ID).Price)

	got, err := f.engine.UpdateProposal(f.ctx, f.carrierA.ID, p.ID, brokerage.ProposalPatch{Vehicle: str(" furgón "), Price: i64(95)})
	require.NoError(t, err)
	assert.Equal(t, "furgón", got.Vehicle)
	assert.Equal(t, int64(95), got.Price)
	assert.True(t, got.UpdatedAt.After(p.UpdatedAt))

	_, err = f.engine.SelectWinner(f.ctx, f.shipper.ID, p.ID)
	require.NoError(t, err)
	_, err = f.engine.UpdateProposal(f.ctx, f.carrierA.ID, p.ID, brokerage.ProposalPatch{Price: i64(1)})
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = f.engine.UpdateProposal(f.ctx, "ghost", p.ID, brokerage.ProposalPatch{Price: i64(1)})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestShipStatusSequence(t *testing.T) {
	f := newFixture(t)
	l := f.load(t, f.shipper)
	pending := f.propose(t, l.ID, f.carrierB, 100)
	_, err := f.engine.UpdateShipStatus(f.ctx, f.carrierB.ID, pending.ID, models.ShipLoading)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, sel := f.approved(t, f.carrierA, 100)
	pid := sel.Proposal.ID

	_, err = f.engine.UpdateShipStatus(f.ctx, f.carrierA.ID, pid, models.ShipInTransit)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = f.engine.UpdateShipStatus(f.ctx, f.carrierA.ID, pid, "lost")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.engine.UpdateShipStatus(f.ctx, f.shipper2.ID, pid, models.ShipLoading)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	// повтор текущего статуса допустим
	got, err := f.engine.UpdateShipStatus(f.ctx, f.carrierA.ID, pid, models.ShipPending)
	require.NoError(t, err)
	assert.Equal(t, models.ShipPending, got.ShipStatus)

	got, err = f.engine.UpdateShipStatus(f.ctx, f.shipper.ID, pid, models.ShipLoading)
	require.NoError(t, err)
	assert.Equal(t, models.ShipLoading, got.ShipStatus)

	_, err = f.engine.UpdateShipStatus(f.ctx, f.carrierA.ID, pid, models.ShipPending)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	got, err = f.engine.UpdateShipStatus(f.ctx, f.moderator.ID, pid, models.ShipInTransit)
	require.NoError(t, err)
	assert.Equal(t, models.ShipInTransit, got.ShipStatus)

	got, err = f.engine.UpdateProposal(f.ctx, f.carrierA.ID, pid, brokerage.ProposalPatch{ShipStatus: ship(models.ShipDelivered)})
	require.NoError(t, err)
	assert.Equal(t, models.ShipDelivered, got.ShipStatus)

	_, err = f.engine.UpdateShipStatus(f.ctx, f.carrierA.ID, pid, models.ShipInTransit)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestProposalVisibility(t *testing.T) {
	f := newFixture(t)
	l1 := f.load(t, f.shipper)
	l2 := f.load(t, f.shipper2)
	a1 := f.propose(t, l1.ID, f.carrierA, 100)
	f.propose(t, l1.ID, f.carrierB, 110)
	f.propose(t, l2.ID, f.carrierA, 120)

	ids := func(actor models.User, q brokerage.ProposalQuery) []string {
		views, err := f.engine.ListProposals(f.ctx, actor.ID, q)
		require.NoError(t, err)
		out := make([]string, 0, len(views))
		for _, v := range views {
			out = append(out, v.ID)
		}
		return out
	}

	assert.Len(t, ids(f.moderator, brokerage.ProposalQuery{}), 3)
	assert.Len(t, ids(f.shipper, brokerage.ProposalQuery{}), 2)
	assert.Len(t, ids(f.shipper2, brokerage.ProposalQuery{}), 1)
	assert.Len(t, ids(f.carrierA, brokerage.ProposalQuery{}), 2)
	assert.Len(t, ids(f.carrierB, brokerage.ProposalQuery{}), 1)
	assert.Len(t, ids(f.moderator, brokerage.ProposalQuery{LoadID: l1.ID}), 2)
	assert.Len(t, ids(f.moderator, brokerage.ProposalQuery{CarrierEmail: "A@trans.test"}), 2)
	assert.Len(t, ids(f.moderator, brokerage.ProposalQuery{OwnerEmail: "otra@globex.test"}), 1)
	// фильтры не расширяют видимость роли
	assert.Empty(t, ids(f.carrierB, brokerage.ProposalQuery{CarrierEmail: "a@trans.test"}))

	_, err := f.engine.ListProposals(f.ctx, f.moderator.ID, brokerage.ProposalQuery{Status: "archived"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	view, err := f.engine.GetProposal(f.ctx, f.shipper.ID, a1.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Load)
	require.NotNil(t, view.Load.Owner)
	assert.Equal(t, f.shipper.ID, view.Load.Owner.ID)
	require.NotNil(t, view.Carrier)
	assert.Equal(t, f.carrierA.ID, view.Carrier.ID)
	assert.Nil(t, view.Commission)
	assert.Empty(t, view.ThreadID)

	_, err = f.engine.GetProposal(f.ctx, f.shipper2.ID, a1.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.engine.GetProposal(f.ctx, f.carrierB.ID, a1.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	sel, err := f.engine.SelectWinner(f.ctx, f.shipper.ID, a1.ID)
	require.NoError(t, err)
	view, err = f.engine.GetProposal(f.ctx, f.carrierA.ID, a1.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Commission)
	assert.Equal(t, sel.Commission.ID, view.Commission.ID)
	assert.Equal(t, sel.Thread.ID, view.ThreadID)
}
