package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	cartdomain "github.com/smallbiznis/herbcart/internal/cart/domain"
	catalogdomain "github.com/smallbiznis/herbcart/internal/catalog/domain"
	categorydomain "github.com/smallbiznis/herbcart/internal/category/domain"
	inventorydomain "github.com/smallbiznis/herbcart/internal/inventory/domain"
	orderdomain "github.com/smallbiznis/herbcart/internal/order/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidRequest = errors.New("invalid_request")
)

// ErrorHandlingMiddleware is the single place domain errors become HTTP
// responses; handlers only ever call AbortWithError.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: "unauthorized"}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{Type: "forbidden", Message: "forbidden"}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: "not found"}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{Type: err.Error(), Message: conflictMessage(err)}
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{Type: err.Error(), Message: validationMessage(err)}
	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, catalogdomain.ErrNotFound),
		errors.Is(err, categorydomain.ErrNotFound),
		errors.Is(err, inventorydomain.ErrNotFound),
		errors.Is(err, cartdomain.ErrNotFound),
		errors.Is(err, cartdomain.ErrSessionExpired),
		errors.Is(err, orderdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, inventorydomain.ErrInsufficientStock),
		errors.Is(err, catalogdomain.ErrDuplicateSlug),
		errors.Is(err, catalogdomain.ErrDuplicateSKU),
		errors.Is(err, catalogdomain.ErrLastActiveVariant),
		errors.Is(err, categorydomain.ErrDuplicateSlug),
		errors.Is(err, categorydomain.ErrHasChildren),
		errors.Is(err, orderdomain.ErrDuplicateOrderNumber):
		return true
	default:
		return false
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, catalogdomain.ErrInvalidName),
		errors.Is(err, catalogdomain.ErrInvalidPrice),
		errors.Is(err, catalogdomain.ErrVariantMismatch),
		errors.Is(err, categorydomain.ErrInvalidName),
		errors.Is(err, categorydomain.ErrParentNotFound),
		errors.Is(err, categorydomain.ErrCircularReference),
		errors.Is(err, categorydomain.ErrDepthExceeded),
		errors.Is(err, inventorydomain.ErrInvalidQuantity),
		errors.Is(err, cartdomain.ErrInvalidQuantity),
		errors.Is(err, cartdomain.ErrProductUnavailable),
		errors.Is(err, cartdomain.ErrVariantUnavailable),
		errors.Is(err, cartdomain.ErrVariantMismatch),
		errors.Is(err, cartdomain.ErrEmptyCart),
		errors.Is(err, orderdomain.ErrNoItems),
		errors.Is(err, orderdomain.ErrEmptyCart),
		errors.Is(err, orderdomain.ErrInvalidEmail),
		errors.Is(err, orderdomain.ErrInvalidStateTransition),
		errors.Is(err, orderdomain.ErrProductUnavailable),
		errors.Is(err, orderdomain.ErrVariantUnavailable),
		errors.Is(err, orderdomain.ErrVariantMismatch):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, inventorydomain.ErrInsufficientStock):
		return "not enough stock to fulfill the request"
	case errors.Is(err, catalogdomain.ErrLastActiveVariant):
		return "a product with variants must keep at least one active variant"
	case errors.Is(err, categorydomain.ErrHasChildren):
		return "category still has child categories"
	default:
		return "conflict"
	}
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid request"
	case errors.Is(err, categorydomain.ErrCircularReference):
		return "category cannot be moved under its own subtree"
	case errors.Is(err, categorydomain.ErrDepthExceeded):
		return "category hierarchy depth limit reached"
	case errors.Is(err, orderdomain.ErrInvalidStateTransition):
		return "order status transition not allowed"
	default:
		return "validation error"
	}
}
