package proposal

import (
	"log"

	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/sendix-api/internal/brokerage"
	"github.com/rajivgeraev/sendix-api/internal/db"
	"github.com/rajivgeraev/sendix-api/internal/middleware"
	"github.com/rajivgeraev/sendix-api/internal/models"
	"github.com/rajivgeraev/sendix-api/internal/utils"
)

// ProposalService представляет сервис для работы с предложениями перевозчиков
type ProposalService struct {
	engine *brokerage.Engine
}

// NewProposalService создает новый экземпляр ProposalService
func NewProposalService(engine *brokerage.Engine) *ProposalService {
	return &ProposalService{engine: engine}
}

func badBody(c fiber.Ctx, err error) error {
	log.Printf("Ошибка декодирования тела запроса: %v", err)
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных", "code": "Validation"})
}

// CreateProposal создает предложение по грузу
func (s *ProposalService) CreateProposal(c fiber.Ctx) error {
	var req struct {
		LoadID    string `json:"loadId" validate:"required"`
		CarrierID string `json:"carrierId"`
		Vehicle   string `json:"vehicle" validate:"required"`
		Price     int64  `json:"price" validate:"gte=0"`
	}
	if err := c.Bind().Body(&req); err != nil {
		return badBody(c, err)
	}
	if err := utils.Validate(req); err != nil {
		return utils.ErrorResponse(c, err)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	p, err := s.engine.CreateProposal(ctx, middleware.UserID(c), brokerage.NewProposal{
		LoadID:    req.LoadID,
		CarrierID: req.CarrierID,
		Vehicle:   req.Vehicle,
		Price:     req.Price,
	})
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(p)
}

// GetProposals возвращает предложения, видимые текущему пользователю
func (s *ProposalService) GetProposals(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	views, err := s.engine.ListProposals(ctx, middleware.UserID(c), brokerage.ProposalQuery{
		LoadID:       c.Query("loadId"),
		OwnerEmail:   c.Query("ownerEmail"),
		CarrierEmail: c.Query("carrierEmail"),
		Status:       models.ProposalStatus(c.Query("status")),
	})
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(views)
}

// GetProposal возвращает одно предложение с грузом, комиссией и чатом
func (s *ProposalService) GetProposal(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	view, err := s.engine.GetProposal(ctx, middleware.UserID(c), c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(view)
}

// UpdateProposal применяет частичное обновление предложения
func (s *ProposalService) UpdateProposal(c fiber.Ctx) error {
	var req struct {
		Vehicle    *string                `json:"vehicle"`
		Price      *int64                 `json:"price"`
		ShipStatus *models.ShipStatus     `json:"shipStatus"`
		Status     *models.ProposalStatus `json:"status"`
	}
	if err := c.Bind().Body(&req); err != nil {
		return badBody(c, err)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	p, err := s.engine.UpdateProposal(ctx, middleware.UserID(c), c.Params("id"), brokerage.ProposalPatch{
		Vehicle:    req.Vehicle,
		Price:      req.Price,
		ShipStatus: req.ShipStatus,
		Status:     req.Status,
	})
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(p)
}

// SelectWinner выбирает предложение победителем по грузу
func (s *ProposalService) SelectWinner(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	sel, err := s.engine.SelectWinner(ctx, middleware.UserID(c), c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(sel)
}

// moderate выполняет административный переход статуса
func (s *ProposalService) moderate(c fiber.Ctx, next models.ProposalStatus) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	var (
		p   *models.Proposal
		err error
	)
	switch next {
	case models.ProposalFiltered:
		p, err = s.engine.Filter(ctx, middleware.UserID(c), c.Params("id"))
	case models.ProposalRejected:
		p, err = s.engine.Reject(ctx, middleware.UserID(c), c.Params("id"))
	default:
		p, err = s.engine.Unfilter(ctx, middleware.UserID(c), c.Params("id"))
	}
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(p)
}

// FilterProposal переводит предложение в filtered
func (s *ProposalService) FilterProposal(c fiber.Ctx) error {
	return s.moderate(c, models.ProposalFiltered)
}

// RejectProposal отклоняет предложение
func (s *ProposalService) RejectProposal(c fiber.Ctx) error {
	return s.moderate(c, models.ProposalRejected)
}

// UnfilterProposal возвращает предложение в pending
func (s *ProposalService) UnfilterProposal(c fiber.Ctx) error {
	return s.moderate(c, models.ProposalPending)
}
