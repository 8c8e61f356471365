package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace/internal/model"
	"github.com/mmeshcher/marketplace/internal/service"
	"github.com/mmeshcher/marketplace/internal/validation"
)

type profileRequest struct {
	Username    string            `json:"username"`
	Phone       string            `json:"phone"`
	Location    model.Location    `json:"location"`
	AccountType model.AccountType `json:"account_type"`
}

type userResponse struct {
	ID              int64             `json:"id"`
	Username        string            `json:"username"`
	Phone           string            `json:"phone"`
	Location        model.Location    `json:"location"`
	AccountType     model.AccountType `json:"account_type"`
	LocationEnabled bool              `json:"location_enabled"`
	CreatedAt       string            `json:"created_at"`
	UpdatedAt       string            `json:"updated_at"`
}

func newUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:              u.ID,
		Username:        u.Username,
		Phone:           u.Phone,
		Location:        u.Location,
		AccountType:     u.AccountType,
		LocationEnabled: u.LocationEnabled,
		CreatedAt:       u.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       u.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) decodeProfile(w http.ResponseWriter, r *http.Request) (service.ProfileInput, bool) {
	var req profileRequest
	if err := decodeBody(r, &req, false); err != nil {
		badRequest(w, "malformed profile")
		return service.ProfileInput{}, false
	}
	if validation.IsBlank(req.Username) || !validation.IsValidLocation(req.Location) {
		badRequest(w, "username and a valid location are required")
		return service.ProfileInput{}, false
	}

	return service.ProfileInput{
		Username:    req.Username,
		Phone:       req.Phone,
		Location:    req.Location,
		AccountType: req.AccountType,
	}, true
}

// CreateProfile создаёт профиль покупателя или продавца.
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	auth, ok := authority(w, r)
	if !ok {
		return
	}
	in, ok := h.decodeProfile(w, r)
	if !ok {
		return
	}

	u, err := h.service.CreateUser(r.Context(), auth, in)
	if err != nil {
		h.writeError(w, err, "create user error", zap.Int64("authority", auth))
		return
	}

	writeJSON(w, http.StatusCreated, newUserResponse(u))
}

// UpdateProfile обновляет профиль.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	auth, ok := authority(w, r)
	if !ok {
		return
	}
	in, ok := h.decodeProfile(w, r)
	if !ok {
		return
	}

	u, err := h.service.UpdateUser(r.Context(), auth, in)
	if err != nil {
		h.writeError(w, err, "update user error", zap.Int64("authority", auth))
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(u))
}

// GetProfile возвращает профиль текущей учётной записи.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	auth, ok := authority(w, r)
	if !ok {
		return
	}

	u, err := h.service.GetUser(r.Context(), auth)
	if err != nil {
		h.writeError(w, err, "get user error", zap.Int64("authority", auth))
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(u))
}

type locationPreference struct {
	Enabled bool `json:"enabled"`
}

// ToggleLocation включает или выключает использование геолокации.
func (h *Handler) ToggleLocation(w http.ResponseWriter, r *http.Request) {
	auth, ok := authority(w, r)
	if !ok {
		return
	}

	var req locationPreference
	if err := decodeBody(r, &req, false); err != nil {
		badRequest(w, "malformed location preference")
		return
	}

	if err := h.service.ToggleLocation(r.Context(), auth, req.Enabled); err != nil {
		h.writeError(w, err, "toggle location error", zap.Int64("authority", auth))
		return
	}

	writeJSON(w, http.StatusOK, req)
}

// GetLocation возвращает настройку геолокации.
func (h *Handler) GetLocation(w http.ResponseWriter, r *http.Request) {
	auth, ok := authority(w, r)
	if !ok {
		return
	}

	enabled, err := h.service.GetLocationPreference(r.Context(), auth)
	if err != nil {
		h.writeError(w, err, "get location error", zap.Int64("authority", auth))
		return
	}

	writeJSON(w, http.StatusOK, locationPreference{Enabled: enabled})
}

type storeRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Phone       string         `json:"phone"`
	Location    model.Location `json:"location"`
}

type storeResponse struct {
	ID int64 `json:"id"`
	storeRequest
}

// CreateStore создаёт витрину продавца.
func (h *Handler) CreateStore(w http.ResponseWriter, r *http.Request) {
	auth, ok := authority(w, r)
	if !ok {
		return
	}

	var req storeRequest
	if err := decodeBody(r, &req, false); err != nil {
		badRequest(w, "malformed store")
		return
	}
	if validation.IsBlank(req.Name) || !validation.IsValidLocation(req.Location) {
		badRequest(w, "store name and a valid location are required")
		return
	}

	s, err := h.service.CreateStore(r.Context(), auth, service.StoreInput{
		Name:        req.Name,
		Description: req.Description,
		Phone:       req.Phone,
		Location:    req.Location,
	})
	if err != nil {
		h.writeError(w, err, "create store error", zap.Int64("authority", auth))
		return
	}

	writeJSON(w, http.StatusCreated, storeResponse{
		ID: s.ID,
		storeRequest: storeRequest{
			Name:        s.Name,
			Description: s.Description,
			Phone:       s.Phone,
			Location:    s.Location,
		},
	})
}
