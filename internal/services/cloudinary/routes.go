package cloudinary

import "github.com/gofiber/fiber/v3"

// SetupRoutes настраивает маршруты для загрузки вложений
func (s *CloudinaryService) SetupRoutes(protected fiber.Router) {
	// Маршрут для получения параметров загрузки
	protected.Get("/upload/params", s.GenerateUploadParams)
}
