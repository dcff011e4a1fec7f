package chat

import "github.com/gofiber/fiber/v3"

// SetupRoutes настраивает маршруты для API чатов
func (s *ChatService) SetupRoutes(protected fiber.Router) {
	// Чат привязан к предложению
	protected.Get("/proposals/:id/messages", s.GetMessages)
	protected.Post("/proposals/:id/messages", s.SendMessage)
	protected.Post("/proposals/:id/read", s.MarkRead)

	// Сводки для списка переписок
	protected.Get("/chat/unread", s.GetUnread)
	protected.Get("/chat/threads", s.GetThreads)
}
