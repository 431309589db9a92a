package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"cardlink/internal/errors"
	"cardlink/internal/terminal/domain"
)

var statusByType = map[errors.ErrorType]int{
	errors.ErrorTypeBridgeBusy:      fiber.StatusConflict,
	errors.ErrorTypeServiceNotBound: fiber.StatusServiceUnavailable,
	errors.ErrorTypeCancelled:       fiber.StatusConflict,
	errors.ErrorTypeFailed:          fiber.StatusPaymentRequired,
	errors.ErrorTypeValidation:      fiber.StatusBadRequest,
	errors.ErrorTypeTimeout:         fiber.StatusGatewayTimeout,
	errors.ErrorTypeConnection:      fiber.StatusBadGateway,
	errors.ErrorTypeConfiguration:   fiber.StatusInternalServerError,
	errors.ErrorTypeInternal:        fiber.StatusInternalServerError,
}

// StatusFor maps an error onto an HTTP status code
func StatusFor(err error) int {
	if code, ok := statusByType[errors.TypeOf(err)]; ok {
		return code
	}
	return fiber.StatusInternalServerError
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	code := StatusFor(err)
	errType := errors.TypeOf(err)
	if errType == "" {
		errType = errors.ErrorTypeInternal
	}

	body := fiber.Map{
		"error":   string(errType),
		"message": err.Error(),
	}

	if outcome, ok := domain.OutcomeFromError(err); ok {
		body["outcome"] = outcome.Kind().String()
		switch o := outcome.(type) {
		case domain.Cancelled:
			body["reason"] = o.Reason
		case domain.Failed:
			body["resultCode"] = o.ResultCode
			body["errorCode"] = o.ErrorCode
			body["responseMessage"] = o.ResponseMessage
			if s.catalog != nil {
				body["errorDescription"] = s.catalog.DescribeErrorCode(o.ErrorCode)
			}
		}
	}

	if code >= fiber.StatusInternalServerError {
		s.logger.Error("%s %s failed: %v", c.Method(), c.Path(), err)
	} else {
		s.logger.Info("%s %s rejected (%d): %v", c.Method(), c.Path(), code, err)
	}
	return c.Status(code).JSON(body)
}
