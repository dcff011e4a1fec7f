package commission

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/sendix-api/internal/brokerage"
	"github.com/rajivgeraev/sendix-api/internal/db"
	"github.com/rajivgeraev/sendix-api/internal/middleware"
	"github.com/rajivgeraev/sendix-api/internal/models"
	"github.com/rajivgeraev/sendix-api/internal/utils"
)

// CommissionService представляет сервис журнала комиссий
type CommissionService struct {
	engine *brokerage.Engine
}

// NewCommissionService создает новый экземпляр CommissionService
func NewCommissionService(engine *brokerage.Engine) *CommissionService {
	return &CommissionService{engine: engine}
}

// GetCommissions возвращает журнал комиссий с фильтрами и отчётным периодом
func (s *CommissionService) GetCommissions(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	rows, err := s.engine.ListCommissions(ctx, middleware.UserID(c), brokerage.CommissionQuery{
		Status:       models.CommissionStatus(c.Query("status")),
		OwnerEmail:   c.Query("ownerEmail"),
		CarrierEmail: c.Query("carrierEmail"),
		Period:       c.Query("period"),
		Cut:          c.Query("cut"),
	})
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(rows)
}

// GetSummary возвращает итоги для панели модератора
func (s *CommissionService) GetSummary(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	sum, err := s.engine.CommissionSummary(ctx, middleware.UserID(c))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(sum)
}

// UpdateCommission отмечает комиссию выставленной
func (s *CommissionService) UpdateCommission(c fiber.Ctx) error {
	var req struct {
		Status    models.CommissionStatus `json:"status" validate:"omitempty,eq=invoiced"`
		InvoiceAt *time.Time              `json:"invoiceAt"`
	}
	if err := c.Bind().Body(&req); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных", "code": "Validation"})
	}
	if err := utils.Validate(req); err != nil {
		return utils.ErrorResponse(c, err)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	commission, err := s.engine.MarkInvoiced(ctx, middleware.UserID(c), c.Params("id"), req.InvoiceAt)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(commission)
}
