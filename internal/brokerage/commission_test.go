package brokerage_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/sendix-api/internal/apperr"
	"github.com/rajivgeraev/sendix-api/internal/brokerage"
	"github.com/rajivgeraev/sendix-api/internal/models"
)

func TestPeriodRange(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
	cases := []struct {
		ym, cut    string
		start, end time.Time
	}{
		{"2024-02", "", day(2024, 2, 1), day(2024, 3, 1)},
		{"2024-02", brokerage.CutFull, day(2024, 2, 1), day(2024, 3, 1)},
		{"2024-02", brokerage.CutQ1, day(2024, 2, 1), day(2024, 2, 16)},
		{"2024-02", brokerage.CutQ2, day(2024, 2, 16), day(2024, 3, 1)},
		{"2024-12", brokerage.CutQ2, day(2024, 12, 16), day(2025, 1, 1)},
	}
	for _, tc := range cases {
		start, end, err := brokerage.PeriodRange(tc.ym, tc.cut, nil)
		require.NoError(t, err, tc.ym+"/"+tc.cut)
		assert.True(t, tc.start.Equal(start), "%s/%s start %v", tc.ym, tc.cut, start)
		assert.True(t, tc.end.Equal(end), "%s/%s end %v", tc.ym, tc.cut, end)
	}

	for _, bad := range [][2]string{{"2024-13", ""}, {"marzo", ""}, {"2024-03", "q3"}} {
		_, _, err := brokerage.PeriodRange(bad[0], bad[1], time.UTC)
		assert.ErrorIs(t, err, apperr.ErrValidation, bad)
	}
}

// ledger создает три комиссии: 5 и 20 марта у Acme, 2 апреля у Globex
type ledger struct {
	march5, march20, april2 *brokerage.Selection
}

func newLedger(t *testing.T, f *fixture) ledger {
	t.Helper()
	var lg ledger
	f.clock.Set(time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC))
	_, lg.march5 = f.approved(t, f.carrierA, 10000)
	f.clock.Set(time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC))
	_, lg.march20 = f.approved(t, f.carrierB, 20000)

	f.clock.Set(time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC))
	l := f.load(t, f.shipper2)
	p := f.propose(t, l.ID, f.carrierA, 500)
	sel, err := f.engine.SelectWinner(f.ctx, f.shipper2.ID, p.ID)
	require.NoError(t, err)
	lg.april2 = sel
	return lg
}

func commissionIDs(t *testing.T, f *fixture, actor models.User, q brokerage.CommissionQuery) []string {
	t.Helper()
	views, err := f.engine.ListCommissions(f.ctx, actor.ID, q)
	require.NoError(t, err)
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.ID)
	}
	return out
}

func TestMarkInvoiced(t *testing.T) {
	f := newFixture(t)
	lg := newLedger(t, f)
	id := lg.march5.Commission.ID

	_, err := f.engine.MarkInvoiced(f.ctx, f.shipper.ID, id, nil)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.engine.MarkInvoiced(f.ctx, f.carrierA.ID, id, nil)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.engine.MarkInvoiced(f.ctx, f.moderator.ID, "missing", nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	c, err := f.engine.MarkInvoiced(f.ctx, f.moderator.ID, id, nil)
	require.NoError(t, err)
	assert.Equal(t, models.CommissionInvoiced, c.Status)
	require.NotNil(t, c.InvoiceAt)
	assert.Equal(t, 2024, c.InvoiceAt.Year())
	assert.Equal(t, time.April, c.InvoiceAt.Month())

	_, err = f.engine.MarkInvoiced(f.ctx, f.moderator.ID, id, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	at := time.Date(2024, 3, 31, 23, 0, 0, 0, time.FixedZone("ART", -3*3600))
	c, err = f.engine.MarkInvoiced(f.ctx, f.moderator.ID, lg.march20.Commission.ID, &at)
	require.NoError(t, err)
	assert.True(t, c.InvoiceAt.Equal(at))
	assert.Equal(t, time.UTC, c.InvoiceAt.Location())
}

func TestListCommissionsScoping(t *testing.T) {
	f := newFixture(t)
	lg := newLedger(t, f)
	all := brokerage.CommissionQuery{}

	assert.Equal(t, []string{lg.april2.Commission.ID, lg.march20.Commission.ID, lg.march5.Commission.ID},
		commissionIDs(t, f, f.moderator, all))
	assert.Equal(t, []string{lg.march20.Commission.ID, lg.march5.Commission.ID}, commissionIDs(t, f, f.shipper, all))
	assert.Equal(t, []string{lg.april2.Commission.ID}, commissionIDs(t, f, f.shipper2, all))
	assert.Equal(t, []string{lg.april2.Commission.ID, lg.march5.Commission.ID}, commissionIDs(t, f, f.carrierA, all))
	assert.Equal(t, []string{lg.march20.Commission.ID}, commissionIDs(t, f, f.carrierB, all))

	assert.Equal(t, []string{lg.april2.Commission.ID},
		commissionIDs(t, f, f.moderator, brokerage.CommissionQuery{OwnerEmail: "OTRA@globex.test"}))
	assert.Equal(t, []string{lg.march20.Commission.ID},
		commissionIDs(t, f, f.moderator, brokerage.CommissionQuery{CarrierEmail: "b@trans.test"}))

	views, err := f.engine.ListCommissions(f.ctx, f.moderator.ID, brokerage.CommissionQuery{CarrierEmail: "b@trans.test"})
	require.NoError(t, err)
	require.Len(t, views, 1)
	v := views[0]
	assert.Equal(t, int64(20000), v.Price)
	assert.Equal(t, int64(2000), v.Amount)
	assert.Equal(t, lg.march20.Proposal.LoadID, v.LoadID)
	require.NotNil(t, v.Carrier)
	assert.Equal(t, f.carrierB.ID, v.Carrier.ID)
	require.NotNil(t, v.Owner)
	assert.Equal(t, f.shipper.ID, v.Owner.ID)

	_, err = f.engine.ListCommissions(f.ctx, f.moderator.ID, brokerage.CommissionQuery{Status: "paid"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.engine.ListCommissions(f.ctx, f.moderator.ID, brokerage.CommissionQuery{Period: "2024/03"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.engine.ListCommissions(f.ctx, "ghost", all)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestListCommissionsByPeriod(t *testing.T) {
	f := newFixture(t)
	lg := newLedger(t, f)
	period := func(ym, cut string) []string {
		return commissionIDs(t, f, f.moderator, brokerage.CommissionQuery{Period: ym, Cut: cut})
	}

	assert.Equal(t, []string{lg.march20.Commission.ID, lg.march5.Commission.ID}, period("2024-03", ""))
	assert.Equal(t, []string{lg.march5.Commission.ID}, period("2024-03", brokerage.CutQ1))
	assert.Equal(t, []string{lg.march20.Commission.ID}, period("2024-03", brokerage.CutQ2))
	assert.Equal(t, []string{lg.april2.Commission.ID}, period("2024-04", brokerage.CutFull))
	assert.Empty(t, period("2024-05", ""))

	// выставленная комиссия попадает в период по дате счёта
	at := time.Date(2024, 4, 20, 12, 0, 0, 0, time.UTC)
	_, err := f.engine.MarkInvoiced(f.ctx, f.moderator.ID, lg.march5.Commission.ID, &at)
	require.NoError(t, err)

	assert.Equal(t, []string{lg.march20.Commission.ID}, period("2024-03", ""))
	assert.Equal(t, []string{lg.april2.Commission.ID, lg.march5.Commission.ID}, period("2024-04", ""))
	assert.Equal(t, []string{lg.march5.Commission.ID}, period("2024-04", brokerage.CutQ2))

	invoiced := commissionIDs(t, f, f.moderator, brokerage.CommissionQuery{Status: models.CommissionInvoiced})
	assert.Equal(t, []string{lg.march5.Commission.ID}, invoiced)
}

func TestCommissionSummary(t *testing.T) {
	f := newFixture(t)
	lg := newLedger(t, f)

	_, err := f.engine.CommissionSummary(f.ctx, f.shipper.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	sum, err := f.engine.CommissionSummary(f.ctx, f.moderator.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000+2000+50), sum.PendingAmount)
	assert.Zero(t, sum.InvoicedLast30Days)
	assert.Equal(t, 3, sum.Count)

	_, err = f.engine.MarkInvoiced(f.ctx, f.moderator.ID, lg.march5.Commission.ID, nil)
	require.NoError(t, err)
	old := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	_, err = f.engine.MarkInvoiced(f.ctx, f.moderator.ID, lg.march20.Commission.ID, &old)
	require.NoError(t, err)

	sum, err = f.engine.CommissionSummary(f.ctx, f.moderator.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), sum.PendingAmount)
	assert.Equal(t, int64(1000), sum.InvoicedLast30Days)
}
