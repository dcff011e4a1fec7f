package commission

import "github.com/gofiber/fiber/v3"

// SetupRoutes настраивает маршруты журнала комиссий
func (s *CommissionService) SetupRoutes(protected fiber.Router) {
	api := protected.Group("/commissions")

	api.Get("/", s.GetCommissions)
	api.Get("/summary", s.GetSummary)
	api.Patch("/:id", s.UpdateCommission)
}
