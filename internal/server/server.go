package server

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/rajivgeraev/sendix-api/internal/brokerage"
	"github.com/rajivgeraev/sendix-api/internal/config"
	"github.com/rajivgeraev/sendix-api/internal/middleware"
	"github.com/rajivgeraev/sendix-api/internal/services/auth"
	"github.com/rajivgeraev/sendix-api/internal/services/chat"
	"github.com/rajivgeraev/sendix-api/internal/services/cloudinary"
	"github.com/rajivgeraev/sendix-api/internal/services/commission"
	"github.com/rajivgeraev/sendix-api/internal/services/load"
	"github.com/rajivgeraev/sendix-api/internal/services/proposal"
	"github.com/rajivgeraev/sendix-api/internal/utils"
)

// Deps – зависимости HTTP-приложения
type Deps struct {
	Config  *config.Config
	Engine  *brokerage.Engine
	Uploads *cloudinary.CloudinaryService
	// Health проверяет хранилище для /health; nil – всегда ok
	Health func() error
	// Logging включает журнал запросов
	Logging bool
}

// New собирает Fiber-приложение со всеми маршрутами API
func New(d Deps) *fiber.App {
	// Создаём экземпляр Fiber
	app := fiber.New(fiber.Config{
		AppName:      "Sendix API",
		ErrorHandler: errorHandler,
	})

	// Добавляем middleware
	app.Use(recover.New())
	if d.Logging {
		app.Use(logger.New())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     d.Config.CORSOrigins,
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowCredentials: false,
	}))

	app.Get("/health", func(c fiber.Ctx) error {
		if d.Health != nil {
			if err := d.Health(); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "error": err.Error()})
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Создаём сервисы
	authService := auth.NewAuthService(d.Config, d.Engine)

	// Публичные маршруты регистрируются до защищенной группы
	authService.SetupPublicRoutes(app)

	// Настраиваем middleware для аутентификации
	protected := app.Group("/api")
	protected.Use(middleware.AuthMiddleware(authService.GetJWTService()))

	// Регистрируем маршруты
	authService.SetupRoutes(protected)
	load.NewLoadService(d.Engine).SetupRoutes(protected)
	proposal.NewProposalService(d.Engine).SetupRoutes(protected)
	commission.NewCommissionService(d.Engine).SetupRoutes(protected)
	chat.NewChatService(d.Engine).SetupRoutes(protected)
	if d.Uploads != nil {
		d.Uploads.SetupRoutes(protected)
	}

	return app
}

// errorHandler обрабатывает ошибки Fiber
func errorHandler(c fiber.Ctx, err error) error {
	// Проверяем, является ли ошибка из Fiber
	var e *fiber.Error
	if errors.As(err, &e) {
		return c.Status(e.Code).JSON(fiber.Map{
			"error": e.Message,
		})
	}

	return utils.ErrorResponse(c, err)
}
