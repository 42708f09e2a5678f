package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-desk/internal/auth"
	"github.com/spec-kit/complaint-desk/internal/domain"
	apperrors "github.com/spec-kit/complaint-desk/pkg/util"
)

// NewValidator builds a validator that reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bind parses the JSON body into out and validates it.
func bind(c *fiber.Ctx, validate *validator.Validate, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("body", "invalid payload")
	}
	if err := validate.Struct(out); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fe := validationErrors[0]
			return apperrors.NewValidationError(fe.Field(), fmt.Sprintf("%s failed the %s rule", fe.Field(), fe.Tag()))
		}
		return apperrors.NewValidationError("body", err.Error())
	}
	return nil
}

func actorFrom(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return actor, nil
}

// expectedVersion prefers the If-Match header over the body field.
func expectedVersion(c *fiber.Ctx, body *int64) (*int64, error) {
	raw := strings.TrimSpace(c.Get(fiber.HeaderIfMatch))
	if raw == "" {
		return body, nil
	}
	raw = strings.Trim(strings.TrimPrefix(raw, "W/"), `"`)
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperrors.NewValidationError("If-Match", "If-Match must carry a ticket version")
	}
	return &version, nil
}

func setETag(c *fiber.Ctx, t *domain.Ticket) {
	c.Set(fiber.HeaderETag, fmt.Sprintf(`"%d"`, t.Version))
}

func splitAndTrim(input string) []string {
	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func queryString(c *fiber.Ctx, key string) *string {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil
	}
	return &value
}

func queryTime(c *fiber.Ctx, key string) (*time.Time, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, apperrors.NewValidationError(key, key+" must be RFC3339")
	}
	return &t, nil
}

func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return 0, apperrors.NewValidationError(key, key+" must be a positive integer")
	}
	return parsed, nil
}
