package oracle

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/marketplace/internal/model"
)

// DefaultMaxAge — порог устаревания цены по умолчанию.
const DefaultMaxAge = 60 * time.Second

// MaxExpo ограничивает модуль экспоненты цены: int64 вмещает не более 19 знаков.
const MaxExpo = 18

// maxProductDigits — число знаков произведения двух int64.
const maxProductDigits = 38

// PriceSource описывает источник сырых цен.
type PriceSource interface {
	GetPrice(ctx context.Context, feedID string) (*model.PricePoint, error)
}

// Adapter проверяет свежесть цены перед тем, как отдать её расчёту.
type Adapter struct {
	source PriceSource
	maxAge time.Duration
	now    func() time.Time
}

// NewAdapter создаёт адаптер с порогом устаревания maxAge. Если now равен nil, используется time.Now.
func NewAdapter(source PriceSource, maxAge time.Duration, now func() time.Time) *Adapter {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if now == nil {
		now = time.Now
	}
	return &Adapter{source: source, maxAge: maxAge, now: now}
}

// GetPrice возвращает цену фида не старше порога устаревания.
func (a *Adapter) GetPrice(ctx context.Context, feedID string) (model.PricePoint, error) {
	if a == nil || a.source == nil {
		return model.PricePoint{}, fmt.Errorf("%w: no price source", model.ErrPriceUnavailable)
	}

	p, err := a.source.GetPrice(ctx, feedID)
	if err != nil {
		return model.PricePoint{}, err
	}
	if p == nil || p.Value <= 0 {
		return model.PricePoint{}, fmt.Errorf("%w: feed %s has no positive price", model.ErrPriceUnavailable, feedID)
	}

	if p.Expo > MaxExpo || p.Expo < -MaxExpo {
		return model.PricePoint{}, fmt.Errorf("%w: feed %s has exponent %d", model.ErrPriceUnavailable, feedID, p.Expo)
	}

	if age := a.now().Sub(p.PublishTime); age > a.maxAge {
		return model.PricePoint{}, fmt.Errorf("%w: feed %s is %s old", model.ErrStalePrice, feedID, age)
	}

	return *p, nil
}

// Convert пересчитывает сумму price в нативной монете в сумму токена:
//
//	price × value / 10^(nativeDecimals − |expo| − tokenDecimals)
//
// Деление целочисленное, дробная часть отбрасывается; отрицательная степень умножает.
// Умножение на степень больше 10^18 даёт model.ErrAmountOverflow, деление на степень
// больше 10^38 даёт ноль.
func Convert(price int64, p model.PricePoint, nativeDecimals, tokenDecimals int32) (int64, error) {
	expo := int64(p.Expo)
	if expo < 0 {
		expo = -expo
	}
	shift := int64(nativeDecimals) - expo - int64(tokenDecimals)

	switch {
	case shift < -MaxExpo:
		return 0, model.ErrAmountOverflow
	case shift > maxProductDigits:
		return 0, nil
	}

	amount := decimal.NewFromInt(price).
		Mul(decimal.NewFromInt(p.Value)).
		Shift(int32(-shift)).
		Truncate(0)

	if amount.LessThan(decimal.Zero) || amount.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, model.ErrAmountOverflow
	}
	return amount.IntPart(), nil
}
