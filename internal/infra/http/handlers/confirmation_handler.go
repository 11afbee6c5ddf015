package handlers

import (
	"context"
	"net/http"

	"github.com/xavierca1/dj-funnel/internal/entity"
	"github.com/xavierca1/dj-funnel/internal/infra/http/middleware"
	"github.com/xavierca1/dj-funnel/internal/usecase"
)

type PaymentConfirmer interface {
	Confirm(ctx context.Context, input usecase.ConfirmPaymentInput) (*entity.PaymentConfirmation, error)
}

type ConfirmationHandler struct {
	confirmer PaymentConfirmer
}

func NewConfirmationHandler(confirmer PaymentConfirmer) *ConfirmationHandler {
	return &ConfirmationHandler{confirmer: confirmer}
}

// Handle serves GET /checkout/confirm. Every interpreted outcome, pending
// included, is a 200; the page renders from the outcome field.
func (h *ConfirmationHandler) Handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	input := usecase.ConfirmPaymentInput{
		Provider:  entity.PaymentProvider(q.Get("provider")),
		SessionID: q.Get("session_id"),
		OrderID:   q.Get("order_id"),
		LeadID:    q.Get("lead_id"),
		Product:   q.Get("product"),
	}
	// PayPal redirects back with ?token=<order id>
	if input.OrderID == "" {
		input.OrderID = q.Get("token")
	}

	out, err := h.confirmer.Confirm(r.Context(), input)
	if err != nil {
		writeUseCaseError(w, err)
		return
	}

	middleware.RecordPaymentConfirmation(string(out.Provider), string(out.Outcome))
	writeJSON(w, http.StatusOK, out)
}
