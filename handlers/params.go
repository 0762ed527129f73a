package handlers

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"aidirectory/apperr"
	"aidirectory/models"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Field names in validation details follow the json tags.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// pageParam reads page and limit. Non-numeric or non-positive values are
// rejected; a limit above the ceiling is clamped.
func pageParam(c *gin.Context) (models.Page, error) {
	number, err := positiveQuery(c, "page", 1)
	if err != nil {
		return models.Page{}, err
	}
	limit, err := positiveQuery(c, "limit", models.DefaultPageLimit)
	if err != nil {
		return models.Page{}, err
	}
	return models.NewPage(number, limit), nil
}

func positiveQuery(c *gin.Context, name string, def int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperr.Field(name, "must be a positive integer")
	}
	return n, nil
}

// optionalID reads an optional numeric query parameter; zero means absent.
func optionalID(c *gin.Context, name string) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apperr.Field(name, "must be a positive integer")
	}
	return id, nil
}

func idParam(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		return 0, apperr.Field(name, "must be a positive integer")
	}
	return id, nil
}

// sortOrder reads order=asc|desc and reports whether it is descending.
func sortOrder(c *gin.Context, def string) (bool, error) {
	switch strings.ToLower(c.DefaultQuery("order", def)) {
	case "asc":
		return false, nil
	case "desc":
		return true, nil
	}
	return false, apperr.Field("order", "must be asc or desc")
}

// bindJSON decodes the body into dst and turns binding failures into a
// VALIDATION_ERROR with per-field details.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return bindingError(err)
	}
	return nil
}

func bindingError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		details := make(map[string]any, len(ve))
		for _, fe := range ve {
			details[fe.Field()] = fieldMessage(fe)
		}
		return apperr.Validation("Invalid request", details)
	}
	if errors.Is(err, io.EOF) {
		return apperr.Validation("Request body is required", nil)
	}
	return apperr.Validation("Malformed request body", map[string]any{"body": err.Error()})
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
