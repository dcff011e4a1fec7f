package utils

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/sendix-api/internal/apperr"
)

// StatusOf сопоставляет ошибку таксономии с HTTP-статусом
func StatusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, apperr.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, apperr.ErrThreadDisabled),
		errors.Is(err, apperr.ErrDuplicate):
		return fiber.StatusConflict
	case errors.Is(err, apperr.ErrInvalidTransition),
		errors.Is(err, apperr.ErrInvalidReference),
		errors.Is(err, apperr.ErrEmpty),
		errors.Is(err, apperr.ErrValidation):
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

// ErrorResponse отправляет ошибку клиенту в формате {"error", "code"}
func ErrorResponse(c fiber.Ctx, err error) error {
	status := StatusOf(err)
	if status == fiber.StatusInternalServerError {
		log.Printf("Внутренняя ошибка %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(status).JSON(fiber.Map{
			"error": "Внутренняя ошибка сервера",
			"code":  apperr.Code(err),
		})
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
		"code":  apperr.Code(err),
	})
}
