package memstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rajivgeraev/sendix-api/internal/apperr"
	"github.com/rajivgeraev/sendix-api/internal/models"
)

// repo работает с данными без блокировок; вызывающий держит мьютекс
type repo struct {
	d *data
}

func copyMessage(m models.Message) *models.Message {
	if m.Attachments != nil {
		m.Attachments = append([]models.Attachment(nil), m.Attachments...)
	}
	if m.ReplyToID != nil {
		id := *m.ReplyToID
		m.ReplyToID = &id
	}
	return &m
}

func copyThread(t models.Thread) *models.Thread {
	if t.ProposalID != nil {
		id := *t.ProposalID
		t.ProposalID = &id
	}
	return &t
}

func copyCommission(c models.Commission) *models.Commission {
	if c.InvoiceAt != nil {
		at := *c.InvoiceAt
		c.InvoiceAt = &at
	}
	return &c
}

func (r *repo) emailOf(id string) string {
	return r.d.users[id].Email
}

func (r *repo) GetUser(_ context.Context, id string) (*models.User, error) {
	u, ok := r.d.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &u, nil
}

func (r *repo) GetUserByTelegramID(_ context.Context, telegramID int64) (*models.User, error) {
	for _, u := range r.d.users {
		if telegramID != 0 && u.TelegramID == telegramID {
			return &u, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (r *repo) CreateLoad(_ context.Context, l *models.Load) error {
	if _, ok := r.d.loads[l.ID]; ok {
		return apperr.ErrDuplicate
	}
	row := *l
	row.Owner = nil
	r.d.loads[l.ID] = row
	return nil
}

func (r *repo) GetLoad(_ context.Context, id string) (*models.Load, error) {
	l, ok := r.d.loads[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &l, nil
}

func (r *repo) LockLoad(ctx context.Context, id string) (*models.Load, error) {
	return r.GetLoad(ctx, id)
}

func (r *repo) UpdateLoad(_ context.Context, l *models.Load) error {
	cur, ok := r.d.loads[l.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	row := *l
	row.Owner = nil
	row.OwnerID = cur.OwnerID
	row.CreatedAt = cur.CreatedAt
	r.d.loads[l.ID] = row
	return nil
}

func (r *repo) ListLoads(_ context.Context, f models.LoadFilter) ([]models.Load, error) {
	out := []models.Load{}
	for _, l := range r.d.loads {
		if f.OwnerEmail != "" && !strings.EqualFold(r.emailOf(l.OwnerID), f.OwnerEmail) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// approvedConflict повторяет частичный уникальный индекс «одно одобренное на груз»
func (r *repo) approvedConflict(p *models.Proposal) bool {
	if p.Status != models.ProposalApproved {
		return false
	}
	for _, o := range r.d.proposals {
		if o.ID != p.ID && o.LoadID == p.LoadID && o.Status == models.ProposalApproved {
			return true
		}
	}
	return false
}

func (r *repo) CreateProposal(_ context.Context, p *models.Proposal) error {
	if _, ok := r.d.proposals[p.ID]; ok {
		return apperr.ErrDuplicate
	}
	if _, ok := r.d.loads[p.LoadID]; !ok {
		return apperr.ErrNotFound
	}
	if r.approvedConflict(p) {
		return apperr.ErrDuplicate
	}
	r.d.proposals[p.ID] = *p
	return nil
}

func (r *repo) GetProposal(_ context.Context, id string) (*models.Proposal, error) {
	p, ok := r.d.proposals[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &p, nil
}

func (r *repo) ListProposals(_ context.Context, f models.ProposalFilter) ([]models.Proposal, error) {
	out := []models.Proposal{}
	for _, p := range r.d.proposals {
		if f.LoadID != "" && p.LoadID != f.LoadID {
			continue
		}
		if f.CarrierID != "" && p.CarrierID != f.CarrierID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.CarrierEmail != "" && !strings.EqualFold(r.emailOf(p.CarrierID), f.CarrierEmail) {
			continue
		}
		if f.OwnerID != "" || f.OwnerEmail != "" {
			l := r.d.loads[p.LoadID]
			if f.OwnerID != "" && l.OwnerID != f.OwnerID {
				continue
			}
			if f.OwnerEmail != "" && !strings.EqualFold(r.emailOf(l.OwnerID), f.OwnerEmail) {
				continue
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *repo) UpdateProposal(_ context.Context, p *models.Proposal) error {
	if _, ok := r.d.proposals[p.ID]; !ok {
		return apperr.ErrNotFound
	}
	if r.approvedConflict(p) {
		return apperr.ErrDuplicate
	}
	r.d.proposals[p.ID] = *p
	return nil
}

func (r *repo) RejectSiblings(_ context.Context, loadID, exceptID string) (int64, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	var n int64
	for id, p := range r.d.proposals {
		if p.LoadID != loadID || id == exceptID {
			continue
		}
		if p.Status == models.ProposalApproved || p.Status == models.ProposalRejected {
			continue
		}
		p.Status = models.ProposalRejected
		p.UpdatedAt = now
		r.d.proposals[id] = p
		n++
	}
	return n, nil
}

func (r *repo) CreateCommission(_ context.Context, c *models.Commission) error {
	for _, o := range r.d.commissions {
		if o.ProposalID == c.ProposalID {
			return apperr.ErrDuplicate
		}
	}
	r.d.commissions[c.ID] = *copyCommission(*c)
	return nil
}

func (r *repo) GetCommission(_ context.Context, id string) (*models.Commission, error) {
	c, ok := r.d.commissions[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return copyCommission(c), nil
}

func (r *repo) GetCommissionByProposal(_ context.Context, proposalID string) (*models.Commission, error) {
	for _, c := range r.d.commissions {
		if c.ProposalID == proposalID {
			return copyCommission(c), nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (r *repo) UpdateCommission(_ context.Context, c *models.Commission) error {
	if _, ok := r.d.commissions[c.ID]; !ok {
		return apperr.ErrNotFound
	}
	r.d.commissions[c.ID] = *copyCommission(*c)
	return nil
}

func (r *repo) ListCommissions(_ context.Context, f models.CommissionFilter) ([]models.Commission, error) {
	out := []models.Commission{}
	for _, c := range r.d.commissions {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		p := r.d.proposals[c.ProposalID]
		l := r.d.loads[p.LoadID]
		if f.CarrierID != "" && p.CarrierID != f.CarrierID {
			continue
		}
		if f.OwnerID != "" && l.OwnerID != f.OwnerID {
			continue
		}
		if f.CarrierEmail != "" && !strings.EqualFold(r.emailOf(p.CarrierID), f.CarrierEmail) {
			continue
		}
		if f.OwnerEmail != "" && !strings.EqualFold(r.emailOf(l.OwnerID), f.OwnerEmail) {
			continue
		}
		at := c.PeriodDate()
		if f.From != nil && at.Before(*f.From) {
			continue
		}
		if f.To != nil && !at.Before(*f.To) {
			continue
		}
		out = append(out, *copyCommission(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *repo) CreateThread(_ context.Context, t *models.Thread) error {
	for _, o := range r.d.threads {
		if o.ID == t.ID || (o.LoadID == t.LoadID && o.CarrierID == t.CarrierID) {
			return apperr.ErrDuplicate
		}
	}
	r.d.threads[t.ID] = *copyThread(*t)
	return nil
}

func (r *repo) GetThread(_ context.Context, id string) (*models.Thread, error) {
	t, ok := r.d.threads[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return copyThread(t), nil
}

func (r *repo) GetThreadByPair(_ context.Context, loadID, carrierID string) (*models.Thread, error) {
	for _, t := range r.d.threads {
		if t.LoadID == loadID && t.CarrierID == carrierID {
			return copyThread(t), nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (r *repo) AttachThread(_ context.Context, threadID, proposalID string) error {
	t, ok := r.d.threads[threadID]
	if !ok {
		return apperr.ErrNotFound
	}
	t.ProposalID = &proposalID
	r.d.threads[threadID] = t
	return nil
}

func (r *repo) CreateMessage(_ context.Context, m *models.Message) error {
	if _, ok := r.d.threads[m.ThreadID]; !ok {
		return apperr.ErrNotFound
	}
	if _, ok := r.d.messages[m.ID]; ok {
		return apperr.ErrDuplicate
	}
	row := copyMessage(*m)
	row.From = nil
	r.d.messages[m.ID] = *row
	return nil
}

func (r *repo) GetMessage(_ context.Context, id string) (*models.Message, error) {
	m, ok := r.d.messages[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return copyMessage(m), nil
}

func (r *repo) ListMessages(_ context.Context, threadID string) ([]models.Message, error) {
	out := []models.Message{}
	for _, m := range r.d.messages {
		if m.ThreadID == threadID {
			out = append(out, *copyMessage(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *repo) UpsertRead(_ context.Context, threadID, userID string, at time.Time) error {
	k := readKey{threadID: threadID, userID: userID}
	if cur, ok := r.d.reads[k]; ok && !at.After(cur.LastReadAt) {
		return nil
	}
	r.d.reads[k] = models.Read{ThreadID: threadID, UserID: userID, LastReadAt: at}
	return nil
}

func (r *repo) GetRead(_ context.Context, threadID, userID string) (*models.Read, error) {
	rd, ok := r.d.reads[readKey{threadID: threadID, userID: userID}]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &rd, nil
}
