package brokerage_test

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/rajivgeraev/sendix-api/internal/apperr"
	"github.com/rajivgeraev/sendix-api/internal/brokerage"
	"github.com/rajivgeraev/sendix-api/internal/models"
)

func TestBrokerageScenario(t *testing.T) {
	f := newFixture(t)
	l1 := f.load(t, f.shipper)
	p1 := f.propose(t, l1.ID, f.carrierA, 10000)
	p2 := f.propose(t, l1.ID, f.carrierB, 12000)

	filtered, err := f.engine.Filter(f.ctx, f.moderator.ID, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalFiltered, filtered.Status)

	sel, err := f.engine.SelectWinner(f.ctx, f.shipper.ID, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalApproved, sel.Proposal.Status)
	assert.Equal(t, int64(1), sel.Rejected)
	assert.Equal(t, models.ProposalRejected, f.proposal(t, p2.ID).Status)

	require.NotNil(t, sel.Commission)
	assert.Equal(t, p1.ID, sel.Commission.ProposalID)
	assert.Equal(t, int64(1000), sel.Commission.Amount)
	assert.Equal(t, models.CommissionPending, sel.Commission.Status)

	require.NotNil(t, sel.Thread)
	assert.Equal(t, l1.ID, sel.Thread.LoadID)
	assert.Equal(t, f.carrierA.ID, sel.Thread.CarrierID)

	_, err = f.engine.PostMessage(f.ctx, f.carrierA.ID, p1.ID, brokerage.NewMessage{Text: "en route"})
	require.NoError(t, err)

	unread, err := f.engine.UnreadSummary(f.ctx, f.shipper.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread[p1.ID].Unread)

	_, err = f.engine.MarkRead(f.ctx, f.shipper.ID, p1.ID)
	require.NoError(t, err)
	unread, err = f.engine.UnreadSummary(f.ctx, f.shipper.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, unread[p1.ID].Unread)

	for _, st := range []models.ShipStatus{models.ShipLoading, models.ShipInTransit, models.ShipDelivered} {
		_, err = f.engine.UpdateShipStatus(f.ctx, f.carrierA.ID, p1.ID, st)
		require.NoError(t, err, st)
	}

	history, err := f.engine.ListMessages(f.ctx, f.shipper.ID, p1.ID)
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)
	notice := history.Messages[1]
	assert.True(t, notice.System)
	assert.Equal(t, brokerage.DeliveredNotice, notice.Text)
	assert.Equal(t, f.carrierA.ID, notice.FromUserID)

	events := f.bus.types(p1.ID)
	assert.Contains(t, events, brokerage.EventShipmentUpdated)
	assert.Equal(t, brokerage.EventMessageCreated, events[len(events)-1])

	// повторная доставка – идемпотентный успех без нового сообщения
	again, err := f.engine.UpdateShipStatus(f.ctx, f.carrierA.ID, p1.ID, models.ShipDelivered)
	require.NoError(t, err)
	assert.Equal(t, models.ShipDelivered, again.ShipStatus)
	history, err = f.engine.ListMessages(f.ctx, f.shipper.ID, p1.ID)
	require.NoError(t, err)
	assert.Len(t, history.Messages, 2)
	assert.Len(t, f.bus.types(p1.ID), len(events))
}

func TestSelectWinnerConcurrent(t *testing.T) {
	f := newFixture(t)
	l := f.load(t, f.shipper)

	var ids []string
	for i := 0; i < 8; i++ {
		carrier := models.User{ID: fmt.Sprintf("u-carrier-%d", i), Email: fmt.Sprintf("c%d@trans.test", i), Role: models.RoleCarrier}
		f.store.AddUser(carrier)
		ids = append(ids, f.propose(t, l.ID, carrier, int64(10000+i)).ID)
	}

	var won, lost int32
	var g errgroup.Group
	for _, id := range ids {
		id := id
		g.Go(func() error {
			_, err := f.engine.SelectWinner(f.ctx, f.shipper.ID, id)
			switch {
			case err == nil:
				atomic.AddInt32(&won, 1)
			case assert.ErrorIs(t, err, apperr.ErrInvalidTransition):
				atomic.AddInt32(&lost, 1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), won)
	assert.Equal(t, int32(len(ids)-1), lost)

	all, err := f.store.ListProposals(f.ctx, models.ProposalFilter{LoadID: l.ID})
	require.NoError(t, err)
	approved := 0
	for _, p := range all {
		if p.Status == models.ProposalApproved {
			approved++
		} else {
			assert.Equal(t, models.ProposalRejected, p.Status)
		}
	}
	assert.Equal(t, 1, approved)

	commissions, err := f.store.ListCommissions(f.ctx, models.CommissionFilter{})
	require.NoError(t, err)
	assert.Len(t, commissions, 1)
}

func TestSelectWinnerIdempotent(t *testing.T) {
	f := newFixture(t)
	_, first := f.approved(t, f.carrierA, 12345)

	second, err := f.engine.SelectWinner(f.ctx, f.shipper.ID, first.Proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Commission.ID, second.Commission.ID)
	assert.Equal(t, first.Thread.ID, second.Thread.ID)
	assert.Equal(t, int64(0), second.Rejected)
	assert.Equal(t, int64(1235), second.Commission.Amount)

	commissions, err := f.store.ListCommissions(f.ctx, models.CommissionFilter{})
	require.NoError(t, err)
	assert.Len(t, commissions, 1)
}

func TestSelectWinnerRules(t *testing.T) {
	f := newFixture(t)
	l := f.load(t, f.shipper)
	p1 := f.propose(t, l.ID, f.carrierA, 100)
	p2 := f.propose(t, l.ID, f.carrierB, 200)

	_, err := f.engine.SelectWinner(f.ctx, f.carrierA.ID, p1.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.engine.SelectWinner(f.ctx, f.shipper2.ID, p1.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.engine.SelectWinner(f.ctx, f.shipper.ID, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.engine.Reject(f.ctx, f.moderator.ID, p2.ID)
	require.NoError(t, err)
	_, err = f.engine.SelectWinner(f.ctx, f.shipper.ID, p2.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = f.engine.SelectWinner(f.ctx, f.shipper.ID, p1.ID)
	require.NoError(t, err)

	_, err = f.engine.SelectWinner(f.ctx, "ghost", p1.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestCommissionAmount(t *testing.T) {
	cases := []struct {
		price int64
		rate  float64
		want  int64
	}{
		{10000, 0.10, 1000},
		{12345, 0.10, 1235},
		{5, 0.10, 1},
		{4, 0.10, 0},
		{999, 0.075, 75},
		{0, 0.10, 0},
		{1, 0.5, 1},
		// ставки с точностью выше базисного пункта сначала нормализуются
		{100000, brokerage.NormalizeRate(0.12345), 12350},
		{99999, brokerage.NormalizeRate(0.15555), 15560},
		{brokerage.MaxPrice, 0.9999, 922244969965108},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, brokerage.CommissionAmount(tc.price, tc.rate), "%d × %v", tc.price, tc.rate)
	}
	assert.InDelta(t, 0.1235, brokerage.NormalizeRate(0.12345), 1e-12)
}

func TestCommissionRateNormalizedToBasisPoints(t *testing.T) {
	f := newFixture(t, func(o *brokerage.Options) { o.CommissionRate = 0.15555 })
	assert.InDelta(t, 0.1556, f.engine.CommissionRate(), 1e-12)

	_, sel := f.approved(t, f.carrierA, 99999)
	// сохранённая ставка и сумма согласованы: amount == round(price × rate)
	assert.InDelta(t, 0.1556, sel.Commission.Rate, 1e-12)
	assert.Equal(t, int64(15560), sel.Commission.Amount)
	assert.Equal(t, brokerage.CommissionAmount(99999, sel.Commission.Rate), sel.Commission.Amount)
}

func TestPriceUpperBound(t *testing.T) {
	f := newFixture(t)
	l := f.load(t, f.shipper)

	_, err := f.engine.CreateProposal(f.ctx, f.carrierA.ID, brokerage.NewProposal{LoadID: l.ID, Vehicle: "camión", Price: brokerage.MaxPrice + 1})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.engine.CreateProposal(f.ctx, f.carrierA.ID, brokerage.NewProposal{LoadID: l.ID, Vehicle: "camión", Price: 1 << 60})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	p := f.propose(t, l.ID, f.carrierA, brokerage.MaxPrice)
	_, err = f.engine.UpdateProposal(f.ctx, f.carrierA.ID, p.ID, brokerage.ProposalPatch{Price: i64(brokerage.MaxPrice + 1)})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, brokerage.MaxPrice, f.proposal(t, p.ID).Price)

	sel, err := f.engine.SelectWinner(f.ctx, f.shipper.ID, p.ID)
	require.NoError(t, err)
	assert.Positive(t, sel.Commission.Amount)
	assert.LessOrEqual(t, sel.Commission.Amount, brokerage.MaxPrice)
}

func TestCommissionRatePersistedPerRow(t *testing.T) {
	f := newFixture(t, func(o *brokerage.Options) { o.CommissionRate = 0.075 })
	_, sel := f.approved(t, f.carrierA, 999)
	assert.InDelta(t, 0.075, sel.Commission.Rate, 1e-9)
	assert.Equal(t, int64(75), sel.Commission.Amount)
}

func TestThreadReuseAcrossCycles(t *testing.T) {
	f := newFixture(t)
	l := f.load(t, f.shipper)

	// чат от прошлого цикла переговоров той же пары (груз, перевозчик)
	old := &models.Thread{ID: "t-previous", LoadID: l.ID, CarrierID: f.carrierA.ID, CreatedAt: f.clock.Now()}
	require.NoError(t, f.store.CreateThread(f.ctx, old))
	require.NoError(t, f.store.CreateMessage(f.ctx, &models.Message{
		ID: "m-previous", ThreadID: old.ID, FromUserID: f.carrierA.ID, Text: "hola de nuevo", CreatedAt: f.clock.Now(),
	}))

	p := f.propose(t, l.ID, f.carrierA, 5000)
	sel, err := f.engine.SelectWinner(f.ctx, f.shipper.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, old.ID, sel.Thread.ID)
	require.NotNil(t, sel.Thread.ProposalID)
	assert.Equal(t, p.ID, *sel.Thread.ProposalID)

	history, err := f.engine.ListMessages(f.ctx, f.shipper.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, old.ID, history.ThreadID)
	require.Len(t, history.Messages, 1)
	assert.Equal(t, "hola de nuevo", history.Messages[0].Text)
}
