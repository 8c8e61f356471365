package model

import (
	"time"

	"github.com/google/uuid"
)

// EventKind — тип уведомления для внешних наблюдателей.
type EventKind string

const (
	EventStoreCreated     EventKind = "StoreCreated"
	EventRequestCreated   EventKind = "RequestCreated"
	EventRequestDeleted   EventKind = "RequestDeleted"
	EventOfferCreated     EventKind = "OfferCreated"
	EventOfferAccepted    EventKind = "OfferAccepted"
	EventRequestAccepted  EventKind = "RequestAccepted"
	EventRequestPaid      EventKind = "RequestPaid"
	EventRequestCompleted EventKind = "RequestCompleted"
	EventLocationToggled  EventKind = "LocationToggled"
)

// Event — уведомление, публикуемое после фиксации изменения.
// ID позволяет получателю отбрасывать повторы при доставке at-least-once.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Kind       EventKind `json:"kind"`
	Key        string    `json:"-"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// NewEvent создаёт уведомление с новым идентификатором.
func NewEvent(kind EventKind, key string, at time.Time, payload any) Event {
	return Event{
		ID:         uuid.New(),
		Kind:       kind,
		Key:        key,
		OccurredAt: at,
		Payload:    payload,
	}
}

// StoreCreated публикуется при создании витрины.
type StoreCreated struct {
	StoreID   int64    `json:"store_id"`
	Authority int64    `json:"authority"`
	StoreName string   `json:"store_name"`
	Location  Location `json:"location"`
}

// RequestCreated публикуется при создании заявки.
type RequestCreated struct {
	RequestID         int64     `json:"request_id"`
	Authority         int64     `json:"authority"`
	BuyerID           int64     `json:"buyer_id"`
	Name              string    `json:"request_name"`
	Description       string    `json:"description"`
	Images            []string  `json:"images"`
	Location          Location  `json:"location"`
	Lifecycle         Lifecycle `json:"lifecycle"`
	SellerIDs         []int64   `json:"seller_ids"`
	SellersPriceQuote int64     `json:"sellers_price_quote"`
	LockedSellerID    int64     `json:"locked_seller_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// RequestDeleted публикуется при удалении заявки.
type RequestDeleted struct {
	RequestID int64 `json:"request_id"`
}

// OfferCreated публикуется при создании предложения.
type OfferCreated struct {
	OfferID   int64    `json:"offer_id"`
	Authority int64    `json:"authority"`
	StoreName string   `json:"store_name"`
	Price     int64    `json:"price"`
	RequestID int64    `json:"request_id"`
	Images    []string `json:"images"`
	SellerID  int64    `json:"seller_id"`
	SellerIDs []int64  `json:"seller_ids"`
}

// OfferAccepted публикуется при смене признака принятия предложения.
type OfferAccepted struct {
	OfferID    int64 `json:"offer_id"`
	Authority  int64 `json:"authority"`
	IsAccepted bool  `json:"is_accepted"`
}

// RequestAccepted публикуется, когда покупатель выбрал предложение.
type RequestAccepted struct {
	RequestID         int64     `json:"request_id"`
	OfferID           int64     `json:"offer_id"`
	SellerID          int64     `json:"seller_id"`
	UpdatedAt         time.Time `json:"updated_at"`
	SellersPriceQuote int64     `json:"sellers_price_quote"`
}

// RequestPaid публикуется после оплаты заявки.
type RequestPaid struct {
	RequestID  int64      `json:"request_id"`
	OfferID    int64      `json:"offer_id"`
	PaymentID  int64      `json:"payment_id"`
	Instrument Instrument `json:"instrument"`
	Amount     int64      `json:"amount"`
}

// RequestCompleted публикуется после завершения заявки.
type RequestCompleted struct {
	RequestID int64 `json:"request_id"`
}

// LocationToggled публикуется при изменении настройки геолокации.
type LocationToggled struct {
	UserID          int64 `json:"user_id"`
	LocationEnabled bool  `json:"location_enabled"`
}
