package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace/internal/model"
	"github.com/mmeshcher/marketplace/internal/validation"
)

type payRequest struct {
	OfferID    int64            `json:"offer_id"`
	Instrument model.Instrument `json:"instrument"`
}

type paymentResponse struct {
	ID         int64            `json:"id"`
	RequestID  int64            `json:"request_id"`
	OfferID    int64            `json:"offer_id"`
	Recipient  int64            `json:"recipient"`
	Instrument model.Instrument `json:"instrument"`
	Amount     int64            `json:"amount"`
	Price      int64            `json:"price"`
	PriceValue int64            `json:"price_value,omitempty"`
	PriceExpo  int32            `json:"price_expo,omitempty"`
	CreatedAt  string           `json:"created_at"`
}

func newPaymentResponse(p *model.RequestPayment) paymentResponse {
	return paymentResponse{
		ID:         p.ID,
		RequestID:  p.RequestID,
		OfferID:    p.OfferID,
		Recipient:  p.Recipient,
		Instrument: p.Instrument,
		Amount:     p.Amount,
		Price:      p.Price,
		PriceValue: p.PriceValue,
		PriceExpo:  p.PriceExpo,
		CreatedAt:  p.CreatedAt.Format(time.RFC3339),
	}
}

// PayForRequest оплачивает принятое предложение в нативной монете или токене.
func (h *Handler) PayForRequest(w http.ResponseWriter, r *http.Request) {
	auth, ok := authority(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(r, "requestID")
	if !ok {
		badRequest(w, "invalid request id")
		return
	}

	var req payRequest
	if err := decodeBody(r, &req, false); err != nil || req.OfferID <= 0 {
		badRequest(w, "offer_id is required")
		return
	}

	payment, err := h.service.PayForRequest(r.Context(), auth, requestID, req.OfferID, req.Instrument)
	if err != nil {
		h.writeError(w, err, "pay for request error",
			zap.Int64("requestID", requestID),
			zap.Int64("offerID", req.OfferID),
			zap.String("instrument", string(req.Instrument)),
		)
		return
	}

	writeJSON(w, http.StatusOK, newPaymentResponse(payment))
}

// ListPayments возвращает оплаты заявки.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	auth, ok := authority(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(r, "requestID")
	if !ok {
		badRequest(w, "invalid request id")
		return
	}

	payments, err := h.service.ListPayments(r.Context(), auth, requestID)
	if err != nil {
		h.writeError(w, err, "list payments error", zap.Int64("requestID", requestID))
		return
	}

	if len(payments) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]paymentResponse, 0, len(payments))
	for i := range payments {
		resp = append(resp, newPaymentResponse(&payments[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetWallet возвращает остатки кошелька текущей учётной записи.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	auth, ok := authority(w, r)
	if !ok {
		return
	}

	balances, err := h.service.GetBalances(r.Context(), auth)
	if err != nil {
		h.writeError(w, err, "get wallet error", zap.Int64("authority", auth))
		return
	}

	writeJSON(w, http.StatusOK, nonNil(balances))
}

type depositRequest struct {
	Instrument model.Instrument `json:"instrument"`
	Amount     int64            `json:"amount"`
}

// Deposit пополняет кошелёк текущей учётной записи.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	auth, ok := authority(w, r)
	if !ok {
		return
	}

	var req depositRequest
	if err := decodeBody(r, &req, false); err != nil {
		badRequest(w, "malformed deposit")
		return
	}
	if !validation.IsValidInstrument(req.Instrument) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Kind:    model.KindUnsupportedInstrument,
			Message: model.ErrInvalidCoinPayment.Error(),
		})
		return
	}

	balances, err := h.service.Deposit(r.Context(), auth, req.Instrument, req.Amount)
	if err != nil {
		h.writeError(w, err, "deposit error", zap.Int64("authority", auth))
		return
	}

	writeJSON(w, http.StatusOK, balances)
}
