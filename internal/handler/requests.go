package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace/internal/model"
	"github.com/mmeshcher/marketplace/internal/service"
	"github.com/mmeshcher/marketplace/internal/validation"
)

type requestRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Images      []string       `json:"images"`
	Location    model.Location `json:"location"`
}

type requestResponse struct {
	ID                int64           `json:"id"`
	BuyerID           int64           `json:"buyer_id"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Images            []string        `json:"images"`
	Location          model.Location  `json:"location"`
	SellerIDs         []int64         `json:"seller_ids"`
	OfferIDs          []int64         `json:"offer_ids"`
	LockedSellerID    int64           `json:"locked_seller_id,omitempty"`
	AcceptedOfferID   int64           `json:"accepted_offer_id,omitempty"`
	SellersPriceQuote int64           `json:"sellers_price_quote,omitempty"`
	Paid              bool            `json:"paid"`
	Lifecycle         model.Lifecycle `json:"lifecycle"`
	CreatedAt         string          `json:"created_at"`
	UpdatedAt         string          `json:"updated_at"`
}

func newRequestResponse(r *model.Request) requestResponse {
	return requestResponse{
		ID:                r.ID,
		BuyerID:           r.BuyerID,
		Name:              r.Name,
		Description:       r.Description,
		Images:            nonNil(r.Images),
		Location:          r.Location,
		SellerIDs:         nonNil(r.SellerIDs),
		OfferIDs:          nonNil(r.OfferIDs),
		LockedSellerID:    r.LockedSellerID,
		AcceptedOfferID:   r.AcceptedOfferID,
		SellersPriceQuote: r.SellersPriceQuote,
		Paid:              r.Paid,
		Lifecycle:         r.Lifecycle,
		CreatedAt:         r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         r.UpdatedAt.Format(time.RFC3339),
	}
}

type offerRequest struct {
	Price     int64    `json:"price"`
	Images    []string `json:"images"`
	StoreName string   `json:"store_name"`
}

type offerResponse struct {
	ID         int64    `json:"id"`
	RequestID  int64    `json:"request_id"`
	SellerID   int64    `json:"seller_id"`
	Price      int64    `json:"price"`
	Images     []string `json:"images"`
	StoreName  string   `json:"store_name"`
	IsAccepted bool     `json:"is_accepted"`
	CreatedAt  string   `json:"created_at"`
	UpdatedAt  string   `json:"updated_at"`
}

func newOfferResponse(o *model.Offer) offerResponse {
	return offerResponse{
		ID:         o.ID,
		RequestID:  o.RequestID,
		SellerID:   o.SellerID,
		Price:      o.Price,
		Images:     nonNil(o.Images),
		StoreName:  o.StoreName,
		IsAccepted: o.IsAccepted,
		CreatedAt:  o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  o.UpdatedAt.Format(time.RFC3339),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// CreateRequest создаёт заявку покупателя.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	auth, ok := authority(w, r)
	if !ok {
		return
	}

	var req requestRequest
	if err := decodeBody(r, &req, false); err != nil {
		badRequest(w, "malformed request")
		return
	}
	if validation.IsBlank(req.Name) || !validation.IsValidLocation(req.Location) || !validation.IsValidImages(req.Images) {
		badRequest(w, "name, valid location and image urls are required")
		return
	}

	created, err := h.service.CreateRequest(r.Context(), auth, service.RequestInput{
		Name:        req.Name,
		Description: req.Description,
		Images:      req.Images,
		Location:    req.Location,
	})
	if err != nil {
		h.writeError(w, err, "create request error", zap.Int64("authority", auth))
		return
	}

	writeJSON(w, http.StatusCreated, newRequestResponse(created))
}

// ListRequests возвращает заявки текущей учётной записи.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	auth, ok := authority(w, r)
	if !ok {
		return
	}

	requests, err := h.service.ListRequests(r.Context(), auth)
	if err != nil {
		h.writeError(w, err, "list requests error", zap.Int64("authority", auth))
		return
	}

	if len(requests) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]requestResponse, 0, len(requests))
	for i := range requests {
		resp = append(resp, newRequestResponse(&requests[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetRequest возвращает заявку.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(r, "requestID")
	if !ok {
		badRequest(w, "invalid request id")
		return
	}

	req, err := h.service.GetRequest(r.Context(), requestID)
	if err != nil {
		h.writeError(w, err, "get request error", zap.Int64("requestID", requestID))
		return
	}

	writeJSON(w, http.StatusOK, newRequestResponse(req))
}

// DeleteRequest удаляет заявку, пока по ней нет предложений.
func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	auth, ok := authority(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(r, "requestID")
	if !ok {
		badRequest(w, "invalid request id")
		return
	}

	if err := h.service.DeleteRequest(r.Context(), auth, requestID); err != nil {
		h.writeError(w, err, "delete request error", zap.Int64("requestID", requestID))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreateOffer создаёт предложение продавца по заявке.
func (h *Handler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	auth, ok := authority(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(r, "requestID")
	if !ok {
		badRequest(w, "invalid request id")
		return
	}

	var req offerRequest
	if err := decodeBody(r, &req, false); err != nil {
		badRequest(w, "malformed offer")
		return
	}
	if !validation.IsValidImages(req.Images) {
		badRequest(w, "invalid image urls")
		return
	}

	offer, err := h.service.CreateOffer(r.Context(), auth, requestID, service.OfferInput{
		Price:     req.Price,
		Images:    req.Images,
		StoreName: req.StoreName,
	})
	if err != nil {
		h.writeError(w, err, "create offer error", zap.Int64("requestID", requestID))
		return
	}

	writeJSON(w, http.StatusCreated, newOfferResponse(offer))
}

// ListOffers возвращает предложения по заявке.
func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(r, "requestID")
	if !ok {
		badRequest(w, "invalid request id")
		return
	}

	offers, err := h.service.ListOffers(r.Context(), requestID)
	if err != nil {
		h.writeError(w, err, "list offers error", zap.Int64("requestID", requestID))
		return
	}

	if len(offers) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]offerResponse, 0, len(offers))
	for i := range offers {
		resp = append(resp, newOfferResponse(&offers[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

type acceptRequest struct {
	OfferIDs []int64 `json:"offer_ids"`
}

// AcceptOffer принимает предложение от имени покупателя. Тело с offer_ids
// необязательно; если передано, размер списка сверяется с числом продавцов.
func (h *Handler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	auth, ok := authority(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(r, "requestID")
	if !ok {
		badRequest(w, "invalid request id")
		return
	}
	offerID, ok := pathID(r, "offerID")
	if !ok {
		badRequest(w, "invalid offer id")
		return
	}

	var req acceptRequest
	if err := decodeBody(r, &req, true); err != nil {
		badRequest(w, "malformed offer list")
		return
	}

	accepted, err := h.service.AcceptOffer(r.Context(), auth, requestID, offerID, req.OfferIDs)
	if err != nil {
		h.writeError(w, err, "accept offer error", zap.Int64("requestID", requestID), zap.Int64("offerID", offerID))
		return
	}

	writeJSON(w, http.StatusOK, newRequestResponse(accepted))
}

// CompleteRequest завершает оплаченную заявку.
func (h *Handler) CompleteRequest(w http.ResponseWriter, r *http.Request) {
	auth, ok := authority(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(r, "requestID")
	if !ok {
		badRequest(w, "invalid request id")
		return
	}

	completed, err := h.service.MarkCompleted(r.Context(), auth, requestID)
	if err != nil {
		h.writeError(w, err, "complete request error", zap.Int64("requestID", requestID))
		return
	}

	writeJSON(w, http.StatusOK, newRequestResponse(completed))
}
