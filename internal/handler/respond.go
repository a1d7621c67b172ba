package handler

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"nganiriza-api/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var registerOnce sync.Once

// useJSONFieldNames makes validation errors report json names instead of Go field names.
func useJSONFieldNames() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s.", fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("Value out of range (%s %s).", fe.Tag(), fe.Param())
	case "uuid":
		return "Must be a valid UUID."
	}
	return "Invalid value."
}

// bind decodes the JSON body into dst and writes a 400 on failure.
func bind(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		details := make(map[string]string, len(ve))
		for _, fe := range ve {
			details[fe.Field()] = fieldMessage(fe)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": details})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
	return false
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
}

func forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
}

// fail maps store errors to responses and logs anything unexpected.
func (h *Handler) fail(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		notFound(c)
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	default:
		h.log.Error(msg, zap.Error(err), zap.String("path", c.FullPath()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

type pageParams struct {
	page, size int
}

func (p pageParams) store() store.Page {
	return store.Page{Limit: p.size, Offset: (p.page - 1) * p.size}
}

func parsePage(c *gin.Context) pageParams {
	p := pageParams{page: 1, size: defaultPageSize}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		p.page = v
	}
	if v, err := strconv.Atoi(c.Query("page_size")); err == nil {
		p.size = min(max(v, 1), maxPageSize)
	}
	return p
}

type paginated struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  any     `json:"results"`
}

func pageURL(c *gin.Context, page int) *string {
	q := c.Request.URL.Query()
	q.Set("page", strconv.Itoa(page))
	u := c.Request.URL.Path + "?" + q.Encode()
	return &u
}

func (p pageParams) wrap(c *gin.Context, total int, results any) paginated {
	out := paginated{Count: total, Results: results}
	pages := int(math.Ceil(float64(total) / float64(p.size)))
	if p.page < pages {
		out.Next = pageURL(c, p.page+1)
	}
	if p.page > 1 {
		out.Previous = pageURL(c, min(p.page-1, max(pages, 1)))
	}
	return out
}

// orEmpty keeps JSON arrays from rendering as null.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
