package server

import (
	"errors"
	"net/http"

	"campusmart/internal/app"
	"campusmart/internal/assistant"
	"campusmart/internal/payment"
	"campusmart/pkg/storage"
)

var badRequestErrors = []error{
	app.ErrTicketRequired,
	app.ErrProfileFieldsRequired,
	app.ErrInvalidContactNumber,
	app.ErrProductFieldsRequired,
	app.ErrInvalidPrice,
	app.ErrInvalidCategory,
	app.ErrInvalidSubCategory,
	app.ErrProductIDRequired,
	app.ErrInvalidQuantity,
	app.ErrNewCartItemQuantity,
	app.ErrOwnListing,
	app.ErrOrderIDRequired,
	app.ErrInvalidOTPFormat,
	app.ErrInvalidOTP,
	app.ErrReceiverRequired,
	app.ErrSelfMessage,
	app.ErrContentRequired,
	app.ErrContentTooLong,
	app.ErrSupportFieldsRequired,
	app.ErrInvalidEmail,
	app.ErrSupportMessageTooLong,
	app.ErrInvalidOrderStatus,
	assistant.ErrPromptRequired,
	assistant.ErrPromptTooLong,
	payment.ErrInvalidAmount,
	storage.ErrUnsupportedImage,
}

var forbiddenErrors = []error{
	app.ErrForbidden,
	app.ErrEmailDomainRejected,
	app.ErrNotOrderSeller,
	app.ErrNotOrderBuyer,
	app.ErrNotProductSeller,
}

var notFoundErrors = []error{
	app.ErrUserNotFound,
	app.ErrProductNotFound,
	app.ErrOrderNotFound,
	app.ErrOrderNotPending,
}

var upstreamErrors = []error{
	app.ErrCASUnavailable,
	payment.ErrGateway,
	assistant.ErrModel,
}

// writeAppError maps domain errors to HTTP statuses. Unknown errors are logged
// and reported as a generic 500.
func writeAppError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var dup *app.DuplicateTitleError
	switch {
	case errors.As(err, &dup):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":             dup.Error(),
			"existingProductId": dup.Existing.ID,
		})
	case isAny(err, badRequestErrors):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrUnauthorized), errors.Is(err, app.ErrCASRejected):
		writeError(w, http.StatusUnauthorized, err.Error())
	case isAny(err, forbiddenErrors):
		writeError(w, http.StatusForbidden, err.Error())
	case isAny(err, notFoundErrors):
		writeError(w, http.StatusNotFound, err.Error())
	case isAny(err, upstreamErrors):
		logHandlerError(r, op, err)
		writeError(w, http.StatusBadGateway, upstreamMessage(err))
	default:
		logHandlerError(r, op, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// upstreamMessage hides collaborator detail from clients.
func upstreamMessage(err error) string {
	switch {
	case errors.Is(err, app.ErrCASUnavailable):
		return app.ErrCASUnavailable.Error()
	case errors.Is(err, payment.ErrGateway):
		return payment.ErrGateway.Error()
	default:
		return assistant.ErrModel.Error()
	}
}
