package brokerage

import (
	"context"
	"time"

	"github.com/rajivgeraev/sendix-api/internal/models"
)

// Repository – операции хранилища, которые нужны ядру.
// Методы Get* возвращают apperr.ErrNotFound, если запись отсутствует.
type Repository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)

	CreateLoad(ctx context.Context, l *models.Load) error
	GetLoad(ctx context.Context, id string) (*models.Load, error)
	// LockLoad читает груз с блокировкой строки до конца транзакции
	LockLoad(ctx context.Context, id string) (*models.Load, error)
	ListLoads(ctx context.Context, f models.LoadFilter) ([]models.Load, error)
	// UpdateLoad перезаписывает описательные поля; владелец и дата создания не меняются
	UpdateLoad(ctx context.Context, l *models.Load) error

	CreateProposal(ctx context.Context, p *models.Proposal) error
	GetProposal(ctx context.Context, id string) (*models.Proposal, error)
	ListProposals(ctx context.Context, f models.ProposalFilter) ([]models.Proposal, error)
	UpdateProposal(ctx context.Context, p *models.Proposal) error
	// RejectSiblings переводит в rejected все неодобренные предложения груза, кроме exceptID
	RejectSiblings(ctx context.Context, loadID, exceptID string) (int64, error)

	// CreateCommission возвращает apperr.ErrDuplicate при повторе proposal_id
	CreateCommission(ctx context.Context, c *models.Commission) error
	GetCommission(ctx context.Context, id string) (*models.Commission, error)
	GetCommissionByProposal(ctx context.Context, proposalID string) (*models.Commission, error)
	UpdateCommission(ctx context.Context, c *models.Commission) error
	ListCommissions(ctx context.Context, f models.CommissionFilter) ([]models.Commission, error)

	// CreateThread возвращает apperr.ErrDuplicate при повторе пары (load_id, carrier_id)
	CreateThread(ctx context.Context, t *models.Thread) error
	GetThread(ctx context.Context, id string) (*models.Thread, error)
	GetThreadByPair(ctx context.Context, loadID, carrierID string) (*models.Thread, error)
	AttachThread(ctx context.Context, threadID, proposalID string) error

	CreateMessage(ctx context.Context, m *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	// ListMessages возвращает сообщения по возрастанию created_at, затем id
	ListMessages(ctx context.Context, threadID string) ([]models.Message, error)

	UpsertRead(ctx context.Context, threadID, userID string, at time.Time) error
	GetRead(ctx context.Context, threadID, userID string) (*models.Read, error)
}

// Store – хранилище с поддержкой атомарных транзакций
type Store interface {
	Repository
	// InTx выполняет fn атомарно с изоляцией не слабее serializable.
	// Ошибка fn откатывает все изменения.
	InTx(ctx context.Context, fn func(tx Repository) error) error
}

// Broadcaster публикует события в комнату предложения.
// Ошибки доставки не возвращаются: канал – только ускорение, не источник истины.
type Broadcaster interface {
	Publish(room string, event Event)
}

// AttachmentStore выгружает вложения во внешнее хранилище
type AttachmentStore interface {
	StoreAttachment(ctx context.Context, threadID string, a models.Attachment) (models.Attachment, error)
}

// NopBroadcaster ничего не публикует
type NopBroadcaster struct{}

// Publish реализует Broadcaster
func (NopBroadcaster) Publish(string, Event) {}
