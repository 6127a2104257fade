package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"social-backend/internal/services"
	"social-backend/internal/utils"
)

type apiResponse struct {
	StatusCode int         `json:"statusCode"`
	Data       interface{} `json:"data"`
	Message    string      `json:"message"`
	Success    bool        `json:"success"`
}

type apiError struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func respond(c *fiber.Ctx, status int, data interface{}, message string) error {
	return c.Status(status).JSON(apiResponse{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < fiber.StatusBadRequest,
	})
}

var kindStatus = map[services.Kind]int{
	services.KindInvalidArgument: fiber.StatusBadRequest,
	services.KindNotFound:        fiber.StatusNotFound,
	services.KindForbidden:       fiber.StatusForbidden,
}

// ErrorHandler renders every error returned by a handler as an apiError.
// Unclassified errors are logged and reported as 500 without details.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "Something went wrong, please try again"

	var svcErr *services.Error
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &svcErr):
		if code, ok := kindStatus[svcErr.Kind]; ok {
			status = code
		}
		message = svcErr.Message
	case errors.As(err, &fiberErr):
		status = fiberErr.Code
		message = fiberErr.Message
	default:
		utils.LogError(err, c.Method()+" "+c.Path())
	}

	return c.Status(status).JSON(apiError{StatusCode: status, Message: message})
}
