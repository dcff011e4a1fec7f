// Package memstore – хранилище в памяти для тестов и локального запуска без Postgres.
// Транзакции сериализуются одним мьютексом и применяются целиком или никак.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rajivgeraev/sendix-api/internal/brokerage"
	"github.com/rajivgeraev/sendix-api/internal/models"
)

type readKey struct {
	threadID string
	userID   string
}

type data struct {
	users       map[string]models.User
	loads       map[string]models.Load
	proposals   map[string]models.Proposal
	commissions map[string]models.Commission
	threads     map[string]models.Thread
	messages    map[string]models.Message
	reads       map[readKey]models.Read
}

func newData() *data {
	return &data{
		users:       map[string]models.User{},
		loads:       map[string]models.Load{},
		proposals:   map[string]models.Proposal{},
		commissions: map[string]models.Commission{},
		threads:     map[string]models.Thread{},
		messages:    map[string]models.Message{},
		reads:       map[readKey]models.Read{},
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.loads {
		c.loads[k] = v
	}
	for k, v := range d.proposals {
		c.proposals[k] = v
	}
	for k, v := range d.commissions {
		c.commissions[k] = v
	}
	for k, v := range d.threads {
		c.threads[k] = v
	}
	for k, v := range d.messages {
		c.messages[k] = v
	}
	for k, v := range d.reads {
		c.reads[k] = v
	}
	return c
}

// Store реализует brokerage.Store в памяти
type Store struct {
	mu sync.Mutex
	d  *data
}

var _ brokerage.Store = (*Store)(nil)

// New создает пустое хранилище
func New() *Store {
	return &Store{d: newData()}
}

// AddUser добавляет пользователя; регистрация вне ядра
func (s *Store) AddUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Email = strings.ToLower(u.Email)
	s.d.users[u.ID] = u
}

// InTx выполняет fn на копии данных и подменяет состояние при успехе
func (s *Store) InTx(ctx context.Context, fn func(tx brokerage.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := &repo{d: s.d.clone()}
	if err := fn(work); err != nil {
		return err
	}
	s.d = work.d
	return nil
}

func (s *Store) with() (*repo, func()) {
	s.mu.Lock()
	return &repo{d: s.d}, s.mu.Unlock
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	r, done := s.with()
	defer done()
	return r.GetUser(ctx, id)
}

func (s *Store) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	r, done := s.with()
	defer done()
	return r.GetUserByTelegramID(ctx, telegramID)
}

func (s *Store) CreateLoad(ctx context.Context, l *models.Load) error {
	r, done := s.with()
	defer done()
	return r.CreateLoad(ctx, l)
}

func (s *Store) GetLoad(ctx context.Context, id string) (*models.Load, error) {
	r, done := s.with()
	defer done()
	return r.GetLoad(ctx, id)
}

func (s *Store) LockLoad(ctx context.Context, id string) (*models.Load, error) {
	return s.GetLoad(ctx, id)
}

func (s *Store) UpdateLoad(ctx context.Context, l *models.Load) error {
	r, done := s.with()
	defer done()
	return r.UpdateLoad(ctx, l)
}

func (s *Store) ListLoads(ctx context.Context, f models.LoadFilter) ([]models.Load, error) {
	r, done := s.with()
	defer done()
	return r.ListLoads(ctx, f)
}

func (s *Store) CreateProposal(ctx context.Context, p *models.Proposal) error {
	r, done := s.with()
	defer done()
	return r.CreateProposal(ctx, p)
}

func (s *Store) GetProposal(ctx context.Context, id string) (*models.Proposal, error) {
	r, done := s.with()
	defer done()
	return r.GetProposal(ctx, id)
}

func (s *Store) ListProposals(ctx context.Context, f models.ProposalFilter) ([]models.Proposal, error) {
	r, done := s.with()
	defer done()
	return r.ListProposals(ctx, f)
}

func (s *Store) UpdateProposal(ctx context.Context, p *models.Proposal) error {
	r, done := s.with()
	defer done()
	return r.UpdateProposal(ctx, p)
}

func (s *Store) RejectSiblings(ctx context.Context, loadID, exceptID string) (int64, error) {
	r, done := s.with()
	defer done()
	return r.RejectSiblings(ctx, loadID, exceptID)
}

func (s *Store) CreateCommission(ctx context.Context, c *models.Commission) error {
	r, done := s.with()
	defer done()
	return r.CreateCommission(ctx, c)
}

func (s *Store) GetCommission(ctx context.Context, id string) (*models.Commission, error) {
	r, done := s.with()
	defer done()
	return r.GetCommission(ctx, id)
}

func (s *Store) GetCommissionByProposal(ctx context.Context, proposalID string) (*models.Commission, error) {
	r, done := s.with()
	defer done()
	return r.GetCommissionByProposal(ctx, proposalID)
}

func (s *Store) UpdateCommission(ctx context.Context, c *models.Commission) error {
	r, done := s.with()
	defer done()
	return r.UpdateCommission(ctx, c)
}

func (s *Store) ListCommissions(ctx context.Context, f models.CommissionFilter) ([]models.Commission, error) {
	r, done := s.with()
	defer done()
	return r.ListCommissions(ctx, f)
}

func (s *Store) CreateThread(ctx context.Context, t *models.Thread) error {
	r, done := s.with()
	defer done()
	return r.CreateThread(ctx, t)
}

func (s *Store) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	r, done := s.with()
	defer done()
	return r.GetThread(ctx, id)
}

func (s *Store) GetThreadByPair(ctx context.Context, loadID, carrierID string) (*models.Thread, error) {
	r, done := s.with()
	defer done()
	return r.GetThreadByPair(ctx, loadID, carrierID)
}

func (s *Store) AttachThread(ctx context.Context, threadID, proposalID string) error {
	r, done := s.with()
	defer done()
	return r.AttachThread(ctx, threadID, proposalID)
}

func (s *Store) CreateMessage(ctx context.Context, m *models.Message) error {
	r, done := s.with()
	defer done()
	return r.CreateMessage(ctx, m)
}

func (s *Store) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	r, done := s.with()
	defer done()
	return r.GetMessage(ctx, id)
}

func (s *Store) ListMessages(ctx context.Context, threadID string) ([]models.Message, error) {
	r, done := s.with()
	defer done()
	return r.ListMessages(ctx, threadID)
}

func (s *Store) UpsertRead(ctx context.Context, threadID, userID string, at time.Time) error {
	r, done := s.with()
	defer done()
	return r.UpsertRead(ctx, threadID, userID, at)
}

func (s *Store) GetRead(ctx context.Context, threadID, userID string) (*models.Read, error) {
	r, done := s.with()
	defer done()
	return r.GetRead(ctx, threadID, userID)
}
