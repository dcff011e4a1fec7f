package load

import "github.com/gofiber/fiber/v3"

// SetupRoutes настраивает маршруты для API грузов
func (s *LoadService) SetupRoutes(protected fiber.Router) {
	api := protected.Group("/loads")

	// Маршрут для публикации груза
	api.Post("/", s.CreateLoad)

	// Маршрут для получения списка грузов
	api.Get("/", s.GetLoads)

	// Маршрут для получения одного груза по ID
	api.Get("/:id", s.GetLoad)

	// Маршрут для обновления груза владельцем. Удаления нет – грузы хранятся бессрочно
	api.Patch("/:id", s.UpdateLoad)
}
