package brokerage_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/sendix-api/internal/brokerage"
	"github.com/rajivgeraev/sendix-api/internal/memstore"
	"github.com/rajivgeraev/sendix-api/internal/models"
)

// tickingClock выдаёт строго возрастающее время с шагом в миллисекунду
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *tickingClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// recordingBus запоминает опубликованные события
type recordingBus struct {
	mu     sync.Mutex
	events []brokerage.Event
}

func (b *recordingBus) Publish(room string, ev brokerage.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *recordingBus) types(room string) []brokerage.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []brokerage.EventType
	for _, ev := range b.events {
		if ev.ProposalID == room {
			out = append(out, ev.Type)
		}
	}
	return out
}

type fixture struct {
	ctx    context.Context
	store  *memstore.Store
	engine *brokerage.Engine
	bus    *recordingBus
	clock  *tickingClock

	shipper   models.User
	shipper2  models.User
	carrierA  models.User
	carrierB  models.User
	moderator models.User
}

func newFixture(t *testing.T, opts ...func(*brokerage.Options)) *fixture {
	t.Helper()
	f := &fixture{
		ctx:       context.Background(),
		store:     memstore.New(),
		bus:       &recordingBus{},
		clock:     &tickingClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
		shipper:   models.User{ID: "u-shipper", Email: "empresa@acme.test", Name: "Acme", Role: models.RoleShipper, TelegramID: 1001},
		shipper2:  models.User{ID: "u-shipper2", Email: "otra@globex.test", Name: "Globex", Role: models.RoleShipper},
		carrierA:  models.User{ID: "u-carrier-a", Email: "a@trans.test", Name: "Trans A", Role: models.RoleCarrier},
		carrierB:  models.User{ID: "u-carrier-b", Email: "b@trans.test", Name: "Trans B", Role: models.RoleCarrier},
		moderator: models.User{ID: "u-moderator", Email: "ops@sendix.test", Name: "Nexus", Role: models.RoleModerator},
	}
	for _, u := range []models.User{f.shipper, f.shipper2, f.carrierA, f.carrierB, f.moderator} {
		f.store.AddUser(u)
	}

	o := brokerage.Options{CommissionRate: 0.10, Broadcaster: f.bus, Clock: f.clock.Now}
	for _, fn := range opts {
		fn(&o)
	}
	f.engine = brokerage.NewEngine(f.store, o)
	return f
}

func (f *fixture) load(t *testing.T, owner models.User) *models.Load {
	t.Helper()
	l, err := f.engine.CreateLoad(f.ctx, owner.ID, brokerage.NewLoad{
		Origin:      "Buenos Aires",
		Destination: "Rosario",
		CargoType:   "granos",
	})
	require.NoError(t, err)
	return l
}

func (f *fixture) propose(t *testing.T, loadID string, carrier models.User, price int64) *models.Proposal {
	t.Helper()
	p, err := f.engine.CreateProposal(f.ctx, carrier.ID, brokerage.NewProposal{
		LoadID:  loadID,
		Vehicle: "semirremolque",
		Price:   price,
	})
	require.NoError(t, err)
	return p
}

// approved создает груз и одобренное предложение перевозчика
func (f *fixture) approved(t *testing.T, carrier models.User, price int64) (*models.Load, *brokerage.Selection) {
	t.Helper()
	l := f.load(t, f.shipper)
	p := f.propose(t, l.ID, carrier, price)
	sel, err := f.engine.SelectWinner(f.ctx, f.shipper.ID, p.ID)
	require.NoError(t, err)
	return l, sel
}

func (f *fixture) proposal(t *testing.T, id string) *models.Proposal {
	t.Helper()
	p, err := f.store.GetProposal(f.ctx, id)
	require.NoError(t, err)
	return p
}

func ship(s models.ShipStatus) *models.ShipStatus { return &s }
func status(s models.ProposalStatus) *models.ProposalStatus { return &s }
func str(s string) *string { return &s }
func i64(v int64) *int64 { return &v }
