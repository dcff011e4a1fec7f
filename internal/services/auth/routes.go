package auth

import "github.com/gofiber/fiber/v3"

// SetupPublicRoutes регистрирует маршруты входа
func (s *AuthService) SetupPublicRoutes(app *fiber.App) {
	app.Post("/api/auth/telegram", s.TelegramAuthHandler)
}

// SetupRoutes регистрирует защищенные маршруты
func (s *AuthService) SetupRoutes(protected fiber.Router) {
	protected.Get("/profile", s.Profile)
}
