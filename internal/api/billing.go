package api

import (
	"context"
	"net/http"

	"example.com/workout/internal/auth"
	"example.com/workout/internal/billing"
)

// CheckoutProvider opens premium checkout sessions.
type CheckoutProvider interface {
	CreateSession(ctx context.Context, profileID, email string) (billing.Session, error)
}

func (h *Handler) billingCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if h.checkout == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "billing is not available in this deployment")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if claims.Guest {
		writeError(w, http.StatusForbidden, "forbidden", "premium checkout requires a signed-in account")
		return
	}

	session, err := h.checkout.CreateSession(r.Context(), claims.Subject, claims.Email)
	if err != nil {
		writeError(w, http.StatusBadGateway, "billing_error", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, session)
}
