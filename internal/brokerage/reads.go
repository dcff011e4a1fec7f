package brokerage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rajivgeraev/sendix-api/internal/apperr"
	"github.com/rajivgeraev/sendix-api/internal/models"
)

// MarkRead отмечает чат предложения прочитанным текущим пользователем
func (e *Engine) MarkRead(ctx context.Context, actorID, proposalID string) (*models.Read, error) {
	chat, err := e.openChat(ctx, actorID, proposalID)
	if err != nil {
		return nil, err
	}
	if chat.disabled {
		return nil, fmt.Errorf("чат откроется после выбора предложения: %w", apperr.ErrThreadDisabled)
	}

	now := e.now()
	if err := e.store.UpsertRead(ctx, chat.thread.ID, chat.actor.ID, now); err != nil {
		return nil, err
	}
	read := &models.Read{ThreadID: chat.thread.ID, UserID: chat.actor.ID, LastReadAt: now}

	e.publish(proposalID, EventReadUpdated, ReadUpdated{ProposalID: proposalID, UserID: chat.actor.ID, At: now})
	return read, nil
}

// countUnread – сообщения новее lastRead и не от самого пользователя
func countUnread(msgs []models.Message, userID string, lastRead time.Time) models.UnreadInfo {
	var info models.UnreadInfo
	for i := range msgs {
		m := msgs[i]
		if m.FromUserID != userID && m.CreatedAt.After(lastRead) {
			info.Unread++
		}
		if info.LastMessageAt == nil || m.CreatedAt.After(*info.LastMessageAt) {
			at := m.CreatedAt
			info.LastMessageAt = &at
		}
	}
	return info
}

// threadUnread считает непрочитанные для пользователя в чате
func (e *Engine) threadUnread(ctx context.Context, threadID, userID string) (models.UnreadInfo, error) {
	var lastRead time.Time // нулевое время, если пользователь ещё не открывал чат
	r, err := e.store.GetRead(ctx, threadID, userID)
	switch {
	case err == nil:
		lastRead = r.LastReadAt
	case !errors.Is(err, apperr.ErrNotFound):
		return models.UnreadInfo{}, err
	}

	msgs, err := e.store.ListMessages(ctx, threadID)
	if err != nil {
		return models.UnreadInfo{}, err
	}
	return countUnread(msgs, userID, lastRead), nil
}

// UnreadCount возвращает число непрочитанных сообщений чата для пользователя
func (e *Engine) UnreadCount(ctx context.Context, threadID, userID string) (int, error) {
	if _, err := e.store.GetThread(ctx, threadID); err != nil {
		return 0, fmt.Errorf("чат %s: %w", threadID, err)
	}
	info, err := e.threadUnread(ctx, threadID, userID)
	if err != nil {
		return 0, err
	}
	return info.Unread, nil
}

// accessibleApproved – одобренные предложения в пределах видимости роли
func (e *Engine) accessibleApproved(ctx context.Context, actor *models.User) ([]models.Proposal, error) {
	f := models.ProposalFilter{Status: models.ProposalApproved}
	switch actor.Role {
	case models.RoleShipper:
		f.OwnerID = actor.ID
	case models.RoleCarrier:
		f.CarrierID = actor.ID
	case models.RoleModerator:
	default:
		return nil, nil
	}
	return e.store.ListProposals(ctx, f)
}

// ListThreads возвращает переписки пользователя, свежие сверху
func (e *Engine) ListThreads(ctx context.Context, actorID string) ([]models.ThreadSummary, error) {
	actor, err := e.actor(ctx, e.store, actorID)
	if err != nil {
		return nil, err
	}
	proposals, err := e.accessibleApproved(ctx, actor)
	if err != nil {
		return nil, err
	}

	out := make([]models.ThreadSummary, 0, len(proposals))
	for _, p := range proposals {
		t, disabled, err := e.GetOrCreateThread(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if disabled {
			continue
		}
		info, err := e.threadUnread(ctx, t.ID, actor.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, models.ThreadSummary{
			ProposalID:    p.ID,
			ThreadID:      t.ID,
			LoadID:        p.LoadID,
			CarrierID:     p.CarrierID,
			ShipStatus:    p.ShipStatus,
			Unread:        info.Unread,
			LastMessageAt: info.LastMessageAt,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].LastMessageAt, out[j].LastMessageAt
		if a == nil || b == nil {
			return a != nil
		}
		return a.After(*b)
	})
	return out, nil
}

// UnreadSummary возвращает карту proposalId → {unread, lastMessageAt}
// по всем доступным пользователю одобренным предложениям
func (e *Engine) UnreadSummary(ctx context.Context, actorID string) (map[string]models.UnreadInfo, error) {
	threads, err := e.ListThreads(ctx, actorID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.UnreadInfo, len(threads))
	for _, t := range threads {
		out[t.ProposalID] = models.UnreadInfo{Unread: t.Unread, LastMessageAt: t.LastMessageAt}
	}
	return out, nil
}
