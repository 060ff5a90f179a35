// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/term-insurance-analyzer/app/dto"
	businessflow "github.com/amirphl/term-insurance-analyzer/business_flow"
	"github.com/amirphl/term-insurance-analyzer/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

const defaultRequestTimeout = 30 * time.Second

// baseHandler carries what every handler needs: request validation, logging and the response envelope
type baseHandler struct {
	validator *validator.Validate
	logger    *utils.Logger
	timeout   time.Duration
}

func newBaseHandler(logger *utils.Logger, timeout time.Duration) baseHandler {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return baseHandler{validator: v, logger: logger, timeout: timeout}
}

func (h *baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// validate runs struct validation and returns field-level detail, nil when the request is valid
func (h *baseHandler) validate(req any) []businessflow.FieldError {
	err := h.validator.Struct(req)
	if err == nil {
		return nil
	}
	if ve := businessflow.ValidationErrorFrom(err); ve != nil {
		return ve.Fields
	}
	return []businessflow.FieldError{{Field: "request", Message: err.Error()}}
}

// bindJSON parses and validates a JSON body, writing the 400 response itself on failure.
// It reports whether the handler may continue.
func (h *baseHandler) bindJSON(c fiber.Ctx, req any) (bool, error) {
	if err := c.Bind().JSON(req); err != nil {
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if fields := h.validate(req); fields != nil {
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", fields)
	}
	return true, nil
}

// handleFlowError maps flow errors to HTTP responses. Unknown errors become a 500 with fallbackCode.
func (h *baseHandler) handleFlowError(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	switch {
	case businessflow.IsValidationError(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", businessflow.AsValidationError(err).Fields)
	case businessflow.IsPlanNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Plan not found", "PLAN_NOT_FOUND", nil)
	case businessflow.IsPlanIDRequired(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Plan ID is required", "PLAN_ID_REQUIRED", nil)
	case businessflow.IsPlanAlreadyExists(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "A plan with the same provider and name already exists", "PLAN_ALREADY_EXISTS", nil)
	case businessflow.IsPlanUpdateRequired(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "At least one field must be provided for update", "UPDATE_REQUIRED", nil)
	case businessflow.IsScrapeInProgress(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "A scrape is already in progress", "SCRAPE_IN_PROGRESS", nil)
	case businessflow.IsInvalidLimit(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Limit must be between 1 and 100", "INVALID_LIMIT", nil)
	case errors.Is(err, context.DeadlineExceeded):
		return h.ErrorResponse(c, fiber.StatusGatewayTimeout, "Request timed out", "TIMEOUT", nil)
	}

	var be *businessflow.BusinessError
	if errors.As(err, &be) {
		h.logger.Error(fallbackMessage, "code", be.Code, "error", err, "request_id", requestID(c))
		return h.ErrorResponse(c, fiber.StatusInternalServerError, be.Message, be.Code, nil)
	}

	h.logger.Error(fallbackMessage, "error", err, "request_id", requestID(c))
	return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *baseHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	return h.createRequestContextWithTimeout(c, endpoint, h.timeout)
}

// createRequestContextWithTimeout creates a context with custom timeout and request-scoped values
func (h *baseHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	ctx = context.WithValue(ctx, utils.RequestIDKey, requestID(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)

	return ctx, cancel
}

func (h *baseHandler) clientMetadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(requestID(c))
	return metadata
}

func requestID(c fiber.Ctx) string {
	if id := c.Get(businessflow.RequestIDKey); id != "" {
		return id
	}
	return c.GetRespHeader(businessflow.RequestIDKey)
}

// parseID reads a positive numeric path parameter
func parseID(c fiber.Ctx, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}
