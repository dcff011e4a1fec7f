package chat

import (
	"log"

	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/sendix-api/internal/brokerage"
	"github.com/rajivgeraev/sendix-api/internal/db"
	"github.com/rajivgeraev/sendix-api/internal/middleware"
	"github.com/rajivgeraev/sendix-api/internal/models"
	"github.com/rajivgeraev/sendix-api/internal/utils"
)

// ChatService представляет сервис для работы с чатами предложений
type ChatService struct {
	engine *brokerage.Engine
}

// NewChatService создает новый экземпляр ChatService
func NewChatService(engine *brokerage.Engine) *ChatService {
	return &ChatService{engine: engine}
}

// GetThreads возвращает список переписок пользователя
func (s *ChatService) GetThreads(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	threads, err := s.engine.ListThreads(ctx, middleware.UserID(c))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(threads)
}

// GetMessages возвращает историю чата предложения или {disabled: true}
func (s *ChatService) GetMessages(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	res, err := s.engine.ListMessages(ctx, middleware.UserID(c), c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(res)
}

// SendMessage отправляет сообщение в чат предложения
func (s *ChatService) SendMessage(c fiber.Ctx) error {
	var req struct {
		Text        string              `json:"text"`
		ReplyToID   *string             `json:"replyToId"`
		Attachments []models.Attachment `json:"attachments" validate:"max=5"`
	}
	if err := c.Bind().Body(&req); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных", "code": "Validation"})
	}
	if err := utils.Validate(req); err != nil {
		return utils.ErrorResponse(c, err)
	}
	if req.ReplyToID != nil && *req.ReplyToID == "" {
		req.ReplyToID = nil
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	msg, err := s.engine.PostMessage(ctx, middleware.UserID(c), c.Params("id"), brokerage.NewMessage{
		Text:        req.Text,
		ReplyToID:   req.ReplyToID,
		Attachments: req.Attachments,
	})
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// MarkRead отмечает чат прочитанным
func (s *ChatService) MarkRead(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	read, err := s.engine.MarkRead(ctx, middleware.UserID(c), c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(read)
}

// GetUnread возвращает счётчики непрочитанных по предложениям
func (s *ChatService) GetUnread(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	summary, err := s.engine.UnreadSummary(ctx, middleware.UserID(c))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(summary)
}
