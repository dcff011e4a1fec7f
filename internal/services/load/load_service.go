package load

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/sendix-api/internal/brokerage"
	"github.com/rajivgeraev/sendix-api/internal/db"
	"github.com/rajivgeraev/sendix-api/internal/middleware"
	"github.com/rajivgeraev/sendix-api/internal/utils"
)

// LoadService представляет сервис для работы с грузами
type LoadService struct {
	engine *brokerage.Engine
}

// NewLoadService создает новый экземпляр LoadService
func NewLoadService(engine *brokerage.Engine) *LoadService {
	return &LoadService{engine: engine}
}

// createLoadRequest – тело запроса на публикацию груза
type createLoadRequest struct {
	Origin      string          `json:"origin" validate:"required"`
	Destination string          `json:"destination" validate:"required"`
	CargoType   string          `json:"cargoType" validate:"required"`
	Quantity    *float64        `json:"quantity" validate:"omitempty,gte=0"`
	Unit        string          `json:"unit"`
	Dimensions  string          `json:"dimensions"`
	Weight      *float64        `json:"weight" validate:"omitempty,gte=0"`
	Volume      *float64        `json:"volume" validate:"omitempty,gte=0"`
	ScheduledAt *time.Time      `json:"scheduledAt"`
	Description string          `json:"description"`
	Attachments json.RawMessage `json:"attachments"`
}

// CreateLoad публикует новый груз
func (s *LoadService) CreateLoad(c fiber.Ctx) error {
	var req createLoadRequest
	if err := c.Bind().Body(&req); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных", "code": "Validation"})
	}
	if err := utils.Validate(req); err != nil {
		return utils.ErrorResponse(c, err)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	load, err := s.engine.CreateLoad(ctx, middleware.UserID(c), brokerage.NewLoad{
		Origin:      req.Origin,
		Destination: req.Destination,
		CargoType:   req.CargoType,
		Quantity:    req.Quantity,
		Unit:        req.Unit,
		Dimensions:  req.Dimensions,
		Weight:      req.Weight,
		Volume:      req.Volume,
		ScheduledAt: req.ScheduledAt,
		Description: req.Description,
		Attachments: req.Attachments,
	})
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(load)
}

// updateLoadRequest – частичное обновление груза; отсутствующие поля не меняются
type updateLoadRequest struct {
	Origin      *string         `json:"origin"`
	Destination *string         `json:"destination"`
	CargoType   *string         `json:"cargoType"`
	Quantity    *float64        `json:"quantity" validate:"omitempty,gte=0"`
	Unit        *string         `json:"unit"`
	Dimensions  *string         `json:"dimensions"`
	Weight      *float64        `json:"weight" validate:"omitempty,gte=0"`
	Volume      *float64        `json:"volume" validate:"omitempty,gte=0"`
	ScheduledAt *time.Time      `json:"scheduledAt"`
	Description *string         `json:"description"`
	Attachments json.RawMessage `json:"attachments"`
}

// UpdateLoad обновляет описательные поля груза владельцем
func (s *LoadService) UpdateLoad(c fiber.Ctx) error {
	var req updateLoadRequest
	if err := c.Bind().Body(&req); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных", "code": "Validation"})
	}
	if err := utils.Validate(req); err != nil {
		return utils.ErrorResponse(c, err)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	load, err := s.engine.UpdateLoad(ctx, middleware.UserID(c), c.Params("id"), brokerage.LoadPatch{
		Origin:      req.Origin,
		Destination: req.Destination,
		CargoType:   req.CargoType,
		Quantity:    req.Quantity,
		Unit:        req.Unit,
		Dimensions:  req.Dimensions,
		Weight:      req.Weight,
		Volume:      req.Volume,
		ScheduledAt: req.ScheduledAt,
		Description: req.Description,
		Attachments: req.Attachments,
	})
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(load)
}

// GetLoads возвращает список грузов с фильтром по email владельца
func (s *LoadService) GetLoads(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	loads, err := s.engine.ListLoads(ctx, c.Query("ownerEmail"))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(loads)
}

// GetLoad возвращает груз по ID
func (s *LoadService) GetLoad(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	load, err := s.engine.GetLoad(ctx, c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(load)
}
