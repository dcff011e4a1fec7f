package apperr

import "errors"

// Таксономия ошибок ядра. Все ошибки восстанавливаемые и отдаются клиенту
// как структурированный ответ без частичных изменений состояния.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidReference  = errors.New("invalid reference")
	ErrEmpty             = errors.New("empty")
	ErrValidation        = errors.New("validation failed")
	ErrThreadDisabled    = errors.New("thread disabled")
	ErrDuplicate         = errors.New("duplicate")
)

// Code возвращает машинное имя ошибки для поля "code" в ответе API
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrForbidden):
		return "Forbidden"
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ErrInvalidTransition):
		return "InvalidTransition"
	case errors.Is(err, ErrInvalidReference):
		return "InvalidReference"
	case errors.Is(err, ErrEmpty):
		return "Empty"
	case errors.Is(err, ErrValidation):
		return "Validation"
	case errors.Is(err, ErrThreadDisabled):
		return "ThreadDisabled"
	case errors.Is(err, ErrDuplicate):
		return "Duplicate"
	}
	return "Internal"
}
