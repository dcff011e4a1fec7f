package brokerage

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/rajivgeraev/sendix-api/internal/apperr"
	"github.com/rajivgeraev/sendix-api/internal/models"
)

// DefaultCommissionRate – ставка комиссии платформы по умолчанию (10%)
const DefaultCommissionRate = 0.10

// Options – необязательные зависимости движка
type Options struct {
	CommissionRate float64
	Broadcaster    Broadcaster
	Attachments    AttachmentStore
	Clock          func() time.Time
}

// Engine – движок жизненного цикла предложений, чатов и комиссий
type Engine struct {
	store       Store
	bus         Broadcaster
	attachments AttachmentStore
	rate        float64
	clock       func() time.Time

	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewEngine создает новый экземпляр Engine
func NewEngine(store Store, opts Options) *Engine {
	e := &Engine{
		store:       store,
		bus:         opts.Broadcaster,
		attachments: opts.Attachments,
		rate:        opts.CommissionRate,
		clock:       opts.Clock,
		entropy:     ulid.Monotonic(rand.Reader, 0),
	}
	if e.bus == nil {
		e.bus = NopBroadcaster{}
	}
	// Комиссия считается в базисных пунктах – храним ставку с той же точностью
	if e.rate = NormalizeRate(e.rate); e.rate <= 0 {
		e.rate = DefaultCommissionRate
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	return e
}

// CommissionRate возвращает текущую ставку комиссии
func (e *Engine) CommissionRate() float64 {
	return e.rate
}

// now возвращает текущее время с точностью хранилища (микросекунды)
func (e *Engine) now() time.Time {
	return e.clock().UTC().Truncate(time.Microsecond)
}

func newID() string {
	return uuid.NewString()
}

// newMessageID выдаёт монотонный ULID, чтобы при равном created_at
// сохранялся порядок вставки
func (e *Engine) newMessageID(t time.Time) string {
	e.idMu.Lock()
	defer e.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), e.entropy).String()
}

// actor загружает пользователя, от имени которого выполняется операция
func (e *Engine) actor(ctx context.Context, repo Repository, id string) (*models.User, error) {
	if id == "" {
		return nil, apperr.ErrUnauthorized
	}
	u, err := repo.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("пользователь %s: %w", id, apperr.ErrUnauthorized)
		}
		return nil, err
	}
	return u, nil
}

// publish отправляет событие в комнату предложения; сбои только логируются
func (e *Engine) publish(proposalID string, typ EventType, payload interface{}) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Ошибка публикации события %s для %s: %v", typ, proposalID, r)
		}
	}()
	e.bus.Publish(proposalID, Event{
		Type:       typ,
		ProposalID: proposalID,
		Payload:    payload,
		Timestamp:  e.now(),
	})
}
