package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"motopos/backend/internal/cart"
	"motopos/backend/internal/checkout"
	"motopos/backend/internal/service"
	"motopos/backend/internal/store"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{store.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{store.ErrInsufficientStock, http.StatusConflict, "INSUFFICIENT_STOCK"},
	{store.ErrConflict, http.StatusConflict, "CONFLICT"},
	{store.ErrInvalidTransaction, http.StatusBadRequest, "INVALID_REQUEST"},
	{cart.ErrExceedsStock, http.StatusConflict, "EXCEEDS_STOCK"},
	{cart.ErrLineNotFound, http.StatusNotFound, "LINE_NOT_FOUND"},
	{cart.ErrNegativePrice, http.StatusBadRequest, "NEGATIVE_PRICE"},
	{cart.ErrInvalidQuantity, http.StatusBadRequest, "INVALID_QUANTITY"},
	{cart.ErrInvalidService, http.StatusBadRequest, "INVALID_SERVICE"},
	{cart.ErrNoBranchPrice, http.StatusUnprocessableEntity, "NO_BRANCH_PRICE"},
	{cart.ErrInactivePart, http.StatusUnprocessableEntity, "INACTIVE_PART"},
	{service.ErrCheckoutInProgress, http.StatusConflict, "CHECKOUT_IN_PROGRESS"},
	{service.ErrAdminRequired, http.StatusForbidden, "FORBIDDEN"},
	{service.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
	{service.ErrInvalidRange, http.StatusBadRequest, "INVALID_RANGE"},
	{errMalformedBody, http.StatusBadRequest, "INVALID_REQUEST"},
	{ErrUsernameTaken, http.StatusConflict, "USERNAME_TAKEN"},
}

// statusFor maps a domain error to its HTTP status and stable code.
func statusFor(err error) (int, string) {
	var ce *checkout.Error
	if errors.As(err, &ce) {
		return http.StatusBadRequest, ce.Code
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest, "VALIDATION_FAILED"
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= 500 {
		a.log.Error(r.Context(), "request failed", err)
	}
	writeErrorCode(w, status, code, err)
}
