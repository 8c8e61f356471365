// Package repository содержит реализации хранилища записей маркетплейса:
// PostgreSQL для рабочего окружения и in-memory для локального запуска и тестов.
package repository

import (
	"context"

	"github.com/mmeshcher/marketplace/internal/model"
)

// Tx — набор операций над записями внутри одной атомарной единицы работы.
// Все изменения, сделанные через Tx, применяются целиком при успешном
// завершении InTx или не применяются вовсе.
type Tx interface {
	// NextID выдаёт следующий идентификатор счётчика. Идентификаторы начинаются с 1
	// и не переиспользуются; откат транзакции возвращает счётчик назад.
	NextID(ctx context.Context, counter model.Counter) (int64, error)

	GetUserByAuthority(ctx context.Context, authority int64) (*model.User, error)
	CreateUser(ctx context.Context, u *model.User) error
	UpdateUser(ctx context.Context, u *model.User) error

	CreateStore(ctx context.Context, s *model.Store) error

	GetRequest(ctx context.Context, id int64) (*model.Request, error)
	// GetRequestForUpdate читает заявку и удерживает её от параллельных изменений до конца транзакции.
	GetRequestForUpdate(ctx context.Context, id int64) (*model.Request, error)
	ListRequestsByAuthority(ctx context.Context, authority int64) ([]model.Request, error)
	CreateRequest(ctx context.Context, r *model.Request) error
	UpdateRequest(ctx context.Context, r *model.Request) error
	DeleteRequest(ctx context.Context, id int64) error

	GetOffer(ctx context.Context, id int64) (*model.Offer, error)
	ListOffersByRequest(ctx context.Context, requestID int64) ([]model.Offer, error)
	CreateOffer(ctx context.Context, o *model.Offer) error
	// UpdateOffers записывает предложения в переданном порядке.
	UpdateOffers(ctx context.Context, offers ...*model.Offer) error

	CreatePayment(ctx context.Context, p *model.RequestPayment) error
	ListPaymentsByRequest(ctx context.Context, requestID int64) ([]model.RequestPayment, error)

	Credit(ctx context.Context, account int64, instrument model.Instrument, amount int64) error
	// Debit возвращает model.ErrInsufficientFunds, если остатка не хватает.
	Debit(ctx context.Context, account int64, instrument model.Instrument, amount int64) error
	GetBalances(ctx context.Context, account int64) ([]model.Balance, error)
}

// Counters перечисляет все счётчики идентификаторов.
var Counters = []model.Counter{
	model.CounterUser,
	model.CounterStore,
	model.CounterRequest,
	model.CounterOffer,
	model.CounterRequestPayment,
}
