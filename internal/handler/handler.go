// Package handler содержит HTTP-обработчики API маркетплейса.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace/internal/middleware"
	"github.com/mmeshcher/marketplace/internal/model"
	"github.com/mmeshcher/marketplace/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterAccount(ctx context.Context, login, password string) (int64, error)
	AuthenticateAccount(ctx context.Context, login, password string) (int64, error)

	CreateUser(ctx context.Context, authority int64, in service.ProfileInput) (*model.User, error)
	UpdateUser(ctx context.Context, authority int64, in service.ProfileInput) (*model.User, error)
	GetUser(ctx context.Context, authority int64) (*model.User, error)
	ToggleLocation(ctx context.Context, authority int64, enabled bool) error
	GetLocationPreference(ctx context.Context, authority int64) (bool, error)
	CreateStore(ctx context.Context, authority int64, in service.StoreInput) (*model.Store, error)

	CreateRequest(ctx context.Context, authority int64, in service.RequestInput) (*model.Request, error)
	GetRequest(ctx context.Context, requestID int64) (*model.Request, error)
	ListRequests(ctx context.Context, authority int64) ([]model.Request, error)
	DeleteRequest(ctx context.Context, authority, requestID int64) error
	CreateOffer(ctx context.Context, authority, requestID int64, in service.OfferInput) (*model.Offer, error)
	ListOffers(ctx context.Context, requestID int64) ([]model.Offer, error)
	AcceptOffer(ctx context.Context, authority, requestID, offerID int64, expected []int64) (*model.Request, error)
	MarkCompleted(ctx context.Context, authority, requestID int64) (*model.Request, error)

	PayForRequest(ctx context.Context, authority, requestID, offerID int64, instrument model.Instrument) (*model.RequestPayment, error)
	ListPayments(ctx context.Context, authority, requestID int64) ([]model.RequestPayment, error)
	Deposit(ctx context.Context, authority int64, instrument model.Instrument, amount int64) ([]model.Balance, error)
	GetBalances(ctx context.Context, authority int64) ([]model.Balance, error)
}

// Handler реализует HTTP-обработчики API маркетплейса.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	metrics        *middleware.Metrics
	gatherer       prometheus.Gatherer
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

// WithMetrics включает сбор метрик API и публикацию /metrics из gatherer.
func (h *Handler) WithMetrics(m *middleware.Metrics, gatherer prometheus.Gatherer) *Handler {
	h.metrics = m
	h.gatherer = gatherer
	return h
}

type errorResponse struct {
	Kind    model.ErrorKind `json:"kind"`
	Message string          `json:"message"`
}

var kindStatus = map[model.ErrorKind]int{
	model.KindAlreadyExists:         http.StatusConflict,
	model.KindNotFound:              http.StatusNotFound,
	model.KindInvalidArgument:       http.StatusBadRequest,
	model.KindInvalidRole:           http.StatusForbidden,
	model.KindUnauthorized:          http.StatusForbidden,
	model.KindAlreadyInTargetState:  http.StatusConflict,
	model.KindInvalidState:          http.StatusConflict,
	model.KindWindowViolation:       http.StatusLocked,
	model.KindCardinalityMismatch:   http.StatusConflict,
	model.KindInvalidLinkage:        http.StatusUnprocessableEntity,
	model.KindUnsupportedInstrument: http.StatusBadRequest,
	model.KindInsufficientFunds:     http.StatusPaymentRequired,
	model.KindOracleStale:           http.StatusServiceUnavailable,
	model.KindOracleUnavailable:     http.StatusServiceUnavailable,
}

// writeError переводит доменную ошибку в HTTP-ответ. Прочие ошибки журналируются и отдаются как 500.
func (h *Handler) writeError(w http.ResponseWriter, err error, msg string, fields ...zap.Field) {
	var de *model.Error
	if !errors.As(err, &de) {
		h.logger.Error(msg, append(fields, zap.Error(err))...)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	status, ok := kindStatus[de.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if errors.Is(err, model.ErrInvalidCredentials) {
		status = http.StatusUnauthorized
	}

	writeJSON(w, status, errorResponse{Kind: de.Kind, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Kind: model.KindInvalidArgument, Message: msg})
}

// decodeBody разбирает JSON-тело запроса. Пустое тело допустимо только при optional.
func decodeBody(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	return err
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func authority(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := middleware.AuthorityFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return id, ok
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Register регистрирует учётную запись и выдаёт cookie авторизации.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req, false); err != nil || req.Login == "" || req.Password == "" {
		badRequest(w, "login and password are required")
		return
	}

	id, err := h.service.RegisterAccount(r.Context(), req.Login, req.Password)
	if err != nil {
		h.writeError(w, err, "register account error")
		return
	}

	h.authMiddleware.SetAuthCookie(w, id)
	w.WriteHeader(http.StatusOK)
}

// Login проверяет логин и пароль и выдаёт cookie авторизации.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req, false); err != nil || req.Login == "" || req.Password == "" {
		badRequest(w, "login and password are required")
		return
	}

	id, err := h.service.AuthenticateAccount(r.Context(), req.Login, req.Password)
	if err != nil {
		h.writeError(w, err, "login error")
		return
	}

	h.authMiddleware.SetAuthCookie(w, id)
	w.WriteHeader(http.StatusOK)
}
