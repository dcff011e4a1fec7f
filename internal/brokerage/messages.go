package brokerage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/rajivgeraev/sendix-api/internal/apperr"
	"github.com/rajivgeraev/sendix-api/internal/models"
)

const (
	// MaxAttachments – максимум вложений в одном сообщении
	MaxAttachments = 5
	// MaxAttachmentData – максимальный размер data URI вложения
	MaxAttachmentData = 2 << 20
)

// NewMessage – данные нового сообщения
type NewMessage struct {
	Text        string
	ReplyToID   *string
	Attachments []models.Attachment
}

// ThreadMessages – ответ списка сообщений; Disabled, если чат ещё закрыт
type ThreadMessages struct {
	Disabled bool             `json:"disabled"`
	ThreadID string           `json:"thread_id,omitempty"`
	Messages []models.Message `json:"messages"`
}

// PostMessage добавляет сообщение в чат одобренного предложения
func (e *Engine) PostMessage(ctx context.Context, actorID, proposalID string, in NewMessage) (*models.Message, error) {
	chat, err := e.openChat(ctx, actorID, proposalID)
	if err != nil {
		return nil, err
	}
	if chat.disabled {
		return nil, fmt.Errorf("чат откроется после выбора предложения: %w", apperr.ErrThreadDisabled)
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("текст сообщения пуст: %w", apperr.ErrEmpty)
	}
	atts, err := e.prepareAttachments(ctx, chat.thread.ID, in.Attachments)
	if err != nil {
		return nil, err
	}

	var msg *models.Message
	err = e.store.InTx(ctx, func(tx Repository) error {
		msg, err = e.appendMessage(ctx, tx, chat.thread, chat.actor, in.Text, in.ReplyToID, atts, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.publish(proposalID, EventMessageCreated, MessageCreated{ProposalID: proposalID, Message: *msg})
	return msg, nil
}

// appendMessage сохраняет сообщение и отмечает чат прочитанным для автора
func (e *Engine) appendMessage(ctx context.Context, tx Repository, thread *models.Thread, from *models.User,
	text string, replyToID *string, atts []models.Attachment, system bool) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("текст сообщения пуст: %w", apperr.ErrEmpty)
	}

	if replyToID != nil && *replyToID != "" {
		ref, err := tx.GetMessage(ctx, *replyToID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, fmt.Errorf("сообщение %s не найдено: %w", *replyToID, apperr.ErrInvalidReference)
			}
			return nil, err
		}
		if ref.ThreadID != thread.ID {
			return nil, fmt.Errorf("сообщение %s из другого чата: %w", *replyToID, apperr.ErrInvalidReference)
		}
	} else {
		replyToID = nil
	}

	if atts == nil {
		atts = []models.Attachment{}
	}
	now := e.now()
	sender := from.AsSender()
	m := &models.Message{
		ID:          e.newMessageID(now),
		ThreadID:    thread.ID,
		FromUserID:  from.ID,
		Text:        text,
		ReplyToID:   replyToID,
		Attachments: atts,
		System:      system,
		CreatedAt:   now,
		From:        &sender,
	}
	if err := tx.CreateMessage(ctx, m); err != nil {
		return nil, err
	}
	// отправка сообщения означает прочтение чата до этого момента
	if err := tx.UpsertRead(ctx, thread.ID, from.ID, now); err != nil {
		return nil, err
	}
	return m, nil
}

// prepareAttachments проверяет вложения и выгружает data URI во внешнее хранилище
func (e *Engine) prepareAttachments(ctx context.Context, threadID string, in []models.Attachment) ([]models.Attachment, error) {
	if len(in) > MaxAttachments {
		return nil, fmt.Errorf("не больше %d вложений: %w", MaxAttachments, apperr.ErrValidation)
	}
	out := make([]models.Attachment, 0, len(in))
	for i, a := range in {
		switch {
		case a.Data != "":
			if !strings.HasPrefix(a.Data, "data:") {
				return nil, fmt.Errorf("вложение %d: ожидается data URI: %w", i, apperr.ErrValidation)
			}
			if len(a.Data) > MaxAttachmentData {
				return nil, fmt.Errorf("вложение %d слишком большое: %w", i, apperr.ErrValidation)
			}
		case a.URL != "":
			if !strings.HasPrefix(a.URL, "https://") && !strings.HasPrefix(a.URL, "http://") {
				return nil, fmt.Errorf("вложение %d: некорректная ссылка: %w", i, apperr.ErrValidation)
			}
		default:
			return nil, fmt.Errorf("вложение %d пустое: %w", i, apperr.ErrValidation)
		}

		if a.Data != "" && e.attachments != nil {
			stored, err := e.attachments.StoreAttachment(ctx, threadID, a)
			if err != nil {
				// Не прерываем отправку, вложение остаётся встроенным
				log.Printf("Ошибка выгрузки вложения в чат %s: %v", threadID, err)
			} else {
				a = stored
			}
		}
		out = append(out, a)
	}
	return out, nil
}

// ListMessages возвращает полную историю чата по возрастанию времени
func (e *Engine) ListMessages(ctx context.Context, actorID, proposalID string) (*ThreadMessages, error) {
	chat, err := e.openChat(ctx, actorID, proposalID)
	if err != nil {
		return nil, err
	}
	if chat.disabled {
		return &ThreadMessages{Disabled: true, Messages: []models.Message{}}, nil
	}

	msgs, err := e.store.ListMessages(ctx, chat.thread.ID)
	if err != nil {
		return nil, err
	}

	users := map[string]*models.Sender{}
	for i := range msgs {
		id := msgs[i].FromUserID
		s, ok := users[id]
		if !ok {
			u, err := e.store.GetUser(ctx, id)
			if err != nil && !errors.Is(err, apperr.ErrNotFound) {
				return nil, err
			}
			if u != nil {
				snd := u.AsSender()
				s = &snd
			}
			users[id] = s
		}
		msgs[i].From = s
		if msgs[i].Attachments == nil {
			msgs[i].Attachments = []models.Attachment{}
		}
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return &ThreadMessages{ThreadID: chat.thread.ID, Messages: msgs}, nil
}
