package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/straye-as/offer-pipeline-api/internal/service"
	"go.uber.org/zap"
)

var validate = newValidator()

// newValidator reports fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondValidationError sends a standardized validation error response with specific field messages
func respondValidationError(w http.ResponseWriter, err error) {
	errs := make(map[string]string)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			errs[toJSONFieldName(fe.Field())] = formatValidationError(fe)
		}
	}

	respondProblem(w, domain.APIError{
		Type:    domain.ErrorTypeValidation,
		Title:   "Validation Error",
		Status:  http.StatusBadRequest,
		Message: "One or more fields failed validation",
		Detail:  "One or more fields failed validation",
		Errors:  errs,
	})
}

// formatValidationError creates a human-readable validation error message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", toJSONFieldName(fe.Field()))
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("Must be at least %s", fe.Param())
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("Must be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	default:
		return domain.GetValidationMessage(fe.Tag())
	}
}

// toJSONFieldName converts a Go struct field name to its JSON equivalent (camelCase)
func toJSONFieldName(field string) string {
	if len(field) == 0 {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// respondWithError sends a standardized JSON error response
func respondWithError(w http.ResponseWriter, status int, message string) {
	respondProblem(w, domain.APIError{
		Type:    getErrorType(status),
		Title:   http.StatusText(status),
		Status:  status,
		Message: message,
		Detail:  message,
	})
}

func respondProblem(w http.ResponseWriter, apiErr domain.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	_ = json.NewEncoder(w).Encode(apiErr)
}

// getErrorType returns the appropriate error type for an HTTP status code
func getErrorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return domain.ErrorTypeBadRequest
	case http.StatusUnauthorized:
		return domain.ErrorTypeUnauthorized
	case http.StatusForbidden:
		return domain.ErrorTypeForbidden
	case http.StatusNotFound:
		return domain.ErrorTypeNotFound
	case http.StatusConflict:
		return domain.ErrorTypeConflict
	case http.StatusServiceUnavailable:
		return domain.ErrorTypeUnavailable
	default:
		return domain.ErrorTypeInternal
	}
}

// handleServiceError maps service errors onto problem responses. Stage
// validation failures carry every blocking field with its reason.
func handleServiceError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	var (
		validationErr *service.ValidationError
		notFoundErr   *service.NotFoundError
		conflictErr   *service.ConflictError
	)

	switch {
	case errors.As(err, &validationErr):
		errs := make(map[string]string, len(validationErr.Fields))
		for _, f := range validationErr.Fields {
			errs[f] = validationErr.Reasons[f]
		}
		msg := "Missing or invalid fields: " + strings.Join(validationErr.Fields, ", ")
		if validationErr.Stage != "" {
			msg = fmt.Sprintf("Cannot move offer to %s. %s", validationErr.Stage, msg)
		}
		respondProblem(w, domain.APIError{
			Type:    domain.ErrorTypeValidation,
			Title:   "Validation Error",
			Status:  http.StatusBadRequest,
			Message: msg,
			Detail:  validationErr.Error(),
			Errors:  errs,
		})
	case errors.Is(err, service.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, service.ErrPermissionDenied):
		respondWithError(w, http.StatusForbidden, "You do not have access to this resource")
	case errors.As(err, &notFoundErr):
		respondWithError(w, http.StatusNotFound, notFoundErr.Error())
	case errors.Is(err, service.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Resource not found")
	case errors.As(err, &conflictErr):
		respondWithError(w, http.StatusConflict, "The offer was changed by someone else. Reload it and try again.")
	case errors.Is(err, service.ErrConflict):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrAuditFailure), errors.Is(err, service.ErrStorage):
		logger.Error(op+" failed", zap.Error(err))
		respondWithError(w, http.StatusServiceUnavailable, "The change could not be saved, please try again")
	default:
		logger.Error(op+" failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "An unexpected error occurred")
	}
}

// decodeJSON reads the request body into dst and validates it. It writes the
// error response itself and reports whether the handler should continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		respondValidationError(w, err)
		return false
	}
	return true
}

func parseUUIDParam(w http.ResponseWriter, raw, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s: must be a valid UUID", what))
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

// optionalUUID parses an optional query parameter; ok is false when the value is present but malformed
func optionalUUID(r *http.Request, key string) (*uuid.UUID, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}
	return &id, true
}
