package auth

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"github.com/rajivgeraev/sendix-api/internal/apperr"
	"github.com/rajivgeraev/sendix-api/internal/brokerage"
	"github.com/rajivgeraev/sendix-api/internal/config"
	"github.com/rajivgeraev/sendix-api/internal/db"
	"github.com/rajivgeraev/sendix-api/internal/middleware"
	"github.com/rajivgeraev/sendix-api/internal/utils"
)

// AuthService – структура для обработки авторизации
type AuthService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	engine     *brokerage.Engine
}

// NewAuthService – конструктор AuthService
func NewAuthService(cfg *config.Config, engine *brokerage.Engine) *AuthService {
	return &AuthService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		engine:     engine,
	}
}

// GetJWTService возвращает сервис токенов для middleware и websocket
func (s *AuthService) GetJWTService() *utils.JWTService {
	return s.jwtService
}

// TelegramAuthHandler проверяет initData и выдает JWT зарегистрированному пользователю
func (s *AuthService) TelegramAuthHandler(c fiber.Ctx) error {
	if s.cfg.TelegramBotToken == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Вход через Telegram не настроен"})
	}

	var payload struct {
		InitData string `json:"init_data"`
	}

	if err := c.Bind().Body(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}

	// Проверяем initData
	expiration := 24 * time.Hour
	if err := initdata.Validate(payload.InitData, s.cfg.TelegramBotToken, expiration); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid Telegram data"})
	}

	// Парсим данные
	data, err := initdata.Parse(payload.InitData)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Failed to parse initData"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	// Пользователи заводятся заранее; Telegram только подтверждает личность
	user, err := s.engine.UserByTelegramID(ctx, data.User.ID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Пользователь не зарегистрирован", "code": "Forbidden"})
		}
		return utils.ErrorResponse(c, err)
	}

	// Генерируем JWT
	jwtToken, err := s.jwtService.GenerateToken(user.ID, user.Role)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate JWT"})
	}

	return c.JSON(fiber.Map{
		"token": jwtToken,
		"user":  user,
	})
}

// Profile возвращает текущего пользователя
func (s *AuthService) Profile(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	user, err := s.engine.User(ctx, middleware.UserID(c))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return utils.ErrorResponse(c, apperr.ErrUnauthorized)
		}
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(user)
}
