// Package model содержит доменные сущности маркетплейса локальных услуг.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Account представляет учётную запись, от имени которой выполняются вызовы (authority).
type Account struct {
	ID           int64
	Login        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// AccountType описывает роль пользователя на площадке.
type AccountType string

const (
	AccountTypeBuyer  AccountType = "buyer"
	AccountTypeSeller AccountType = "seller"
)

// Valid сообщает, является ли значение одной из известных ролей.
func (t AccountType) Valid() bool {
	return t == AccountTypeBuyer || t == AccountTypeSeller
}

// Location хранит географические координаты в градусах.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// User описывает профиль покупателя или продавца, привязанный к учётной записи.
type User struct {
	ID              int64
	Authority       int64
	Username        string
	Phone           string
	Location        Location
	AccountType     AccountType
	LocationEnabled bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Store описывает витрину продавца.
type Store struct {
	ID          int64
	Authority   int64
	Name        string
	Description string
	Phone       string
	Location    Location
}

// Lifecycle описывает состояние заявки покупателя.
type Lifecycle uint8

const (
	LifecyclePending Lifecycle = iota
	LifecycleAcceptedBySeller
	LifecycleAcceptedByBuyer
	LifecyclePaid
	LifecycleCompleted
)

var lifecycleNames = [...]string{
	LifecyclePending:          "PENDING",
	LifecycleAcceptedBySeller: "ACCEPTED_BY_SELLER",
	LifecycleAcceptedByBuyer:  "ACCEPTED_BY_BUYER",
	LifecyclePaid:             "PAID",
	LifecycleCompleted:        "COMPLETED",
}

func (l Lifecycle) String() string {
	if int(l) < len(lifecycleNames) {
		return lifecycleNames[l]
	}
	return fmt.Sprintf("Lifecycle(%d)", uint8(l))
}

// MarshalJSON кодирует состояние строкой.
func (l Lifecycle) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// Settled сообщает, что по заявке уже прошла оплата.
func (l Lifecycle) Settled() bool {
	return l == LifecyclePaid || l == LifecycleCompleted
}

// Request описывает заявку покупателя, на которую продавцы присылают предложения.
type Request struct {
	ID                int64
	Authority         int64
	BuyerID           int64
	Name              string
	Description       string
	Images            []string
	Location          Location
	SellerIDs         []int64
	OfferIDs          []int64
	LockedSellerID    int64
	AcceptedOfferID   int64
	SellersPriceQuote int64
	Paid              bool
	Lifecycle         Lifecycle
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Offer описывает ценовое предложение продавца по заявке.
type Offer struct {
	ID         int64
	Authority  int64
	RequestID  int64
	SellerID   int64
	Price      int64
	Images     []string
	StoreName  string
	IsAccepted bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Instrument описывает способ оплаты заявки.
type Instrument string

const (
	// InstrumentNative — прямой перевод в нативной монете.
	InstrumentNative Instrument = "native"
	// InstrumentToken — перевод в токене по курсу ценового оракула.
	InstrumentToken Instrument = "token"
)

// RequestPayment фиксирует проведённую оплату заявки.
type RequestPayment struct {
	ID         int64
	RequestID  int64
	OfferID    int64
	Payer      int64
	Recipient  int64
	Instrument Instrument
	Amount     int64
	Price      int64
	PriceValue int64
	PriceExpo  int32
	CreatedAt  time.Time
}

// Balance содержит остаток на кошельке в одном инструменте.
type Balance struct {
	Instrument Instrument `json:"instrument"`
	Amount     int64      `json:"amount"`
}

// PricePoint — последняя цена из ценового фида.
type PricePoint struct {
	FeedID      string
	Value       int64
	Expo        int32
	Conf        uint64
	PublishTime time.Time
}

// Counter — имя счётчика идентификаторов.
type Counter string

const (
	CounterUser           Counter = "user"
	CounterStore          Counter = "store"
	CounterRequest        Counter = "request"
	CounterOffer          Counter = "offer"
	CounterRequestPayment Counter = "request_payment"
)
