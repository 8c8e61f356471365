// Package service реализует бизнес-логику маркетплейса: жизненный цикл заявок
// и предложений, временную блокировку и расчёты по заявкам.
package service

import (
	"context"
	"strconv"
	"time"

	"github.com/mmeshcher/marketplace/internal/model"
	"github.com/mmeshcher/marketplace/internal/notify"
	"github.com/mmeshcher/marketplace/internal/repository"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateAccount(ctx context.Context, login string, passwordHash []byte) (int64, error)
	GetAccountByLogin(ctx context.Context, login string) (*model.Account, error)
	InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error
}

// PriceOracle возвращает проверенную на свежесть цену фида.
type PriceOracle interface {
	GetPrice(ctx context.Context, feedID string) (model.PricePoint, error)
}

// DefaultTimeToLock — окно блокировки заявки по умолчанию.
const DefaultTimeToLock = 60 * time.Second

// Config содержит параметры бизнес-логики.
type Config struct {
	// TimeToLock — длительность окна после UpdatedAt заявки.
	TimeToLock time.Duration
	// NativeDecimals и TokenDecimals — число знаков нативной монеты и токена.
	NativeDecimals int32
	TokenDecimals  int32
	// Treasury и TokenTreasury — получатели оплаты в нативной монете и токене.
	Treasury      int64
	TokenTreasury int64
	// PriceFeedID — фид оракула для пересчёта в токен.
	PriceFeedID string
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.clock = now
	}
}

// Service содержит бизнес-логику маркетплейса.
type Service struct {
	repo   Repository
	oracle PriceOracle
	sink   notify.Sink
	cfg    Config
	clock  func() time.Time
}

// NewService создаёт сервис с указанным хранилищем, ценовым оракулом и приёмником событий.
func NewService(repo Repository, oracle PriceOracle, sink notify.Sink, cfg Config, opts ...Option) *Service {
	if cfg.TimeToLock <= 0 {
		cfg.TimeToLock = DefaultTimeToLock
	}
	if sink == nil {
		sink = notify.Discard{}
	}

	s := &Service{
		repo:   repo,
		oracle: oracle,
		sink:   sink,
		cfg:    cfg,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// now возвращает текущее время с точностью до секунды.
func (s *Service) now() time.Time {
	return s.clock().UTC().Truncate(time.Second)
}

// locked — предикат временной блокировки: истина, когда окно после последнего
// изменения принятой покупателем заявки уже истекло.
func (s *Service) locked(now time.Time, r *model.Request) bool {
	return now.After(r.UpdatedAt.Add(s.cfg.TimeToLock)) && r.Lifecycle == model.LifecycleAcceptedByBuyer
}

// windowElapsed сообщает, что UpdatedAt + TimeToLock <= now.
func (s *Service) windowElapsed(now time.Time, r *model.Request) bool {
	return !r.UpdatedAt.Add(s.cfg.TimeToLock).After(now)
}

func (s *Service) publish(ctx context.Context, events []model.Event) {
	if len(events) > 0 {
		s.sink.Notify(ctx, events...)
	}
}

func key(id int64) string {
	return strconv.FormatInt(id, 10)
}

// userWithRole загружает профиль вызывающего и проверяет его роль.
func userWithRole(ctx context.Context, tx repository.Tx, authority int64, role model.AccountType, roleErr error) (*model.User, error) {
	u, err := tx.GetUserByAuthority(ctx, authority)
	if err != nil {
		return nil, err
	}
	if u.AccountType != role {
		return nil, roleErr
	}
	return u, nil
}
