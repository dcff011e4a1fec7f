package proposal

import "github.com/gofiber/fiber/v3"

// SetupRoutes настраивает маршруты для API предложений
func (s *ProposalService) SetupRoutes(protected fiber.Router) {
	api := protected.Group("/proposals")

	api.Post("/", s.CreateProposal)
	api.Get("/", s.GetProposals)
	api.Get("/:id", s.GetProposal)
	api.Patch("/:id", s.UpdateProposal)

	// Выбор победителя (владелец груза)
	api.Post("/:id/select", s.SelectWinner)

	// Модерация
	api.Post("/:id/filter", s.FilterProposal)
	api.Post("/:id/reject", s.RejectProposal)
	api.Post("/:id/unfilter", s.UnfilterProposal)
}
