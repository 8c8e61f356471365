package service

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mmeshcher/marketplace/internal/model"
	"github.com/mmeshcher/marketplace/internal/oracle"
	"github.com/mmeshcher/marketplace/internal/repository"
)

var (
	paymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketplace",
		Name:      "request_payments_total",
		Help:      "Number of settled request payments.",
	}, []string{"instrument"})

	paidAmountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketplace",
		Name:      "request_paid_amount_total",
		Help:      "Sum of settled amounts in the smallest unit of the instrument.",
	}, []string{"instrument"})
)

// PayForRequest проводит оплату принятого предложения заявки. Оплата возможна
// один раз и только после истечения окна блокировки.
func (s *Service) PayForRequest(ctx context.Context, authority, requestID, offerID int64, instrument model.Instrument) (*model.RequestPayment, error) {
	var (
		payment *model.RequestPayment
		events  []model.Event
	)
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		req, err := tx.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Authority != authority {
			return model.ErrInvalidUser
		}

		if req.Lifecycle != model.LifecycleAcceptedByBuyer {
			if req.Paid || req.Lifecycle.Settled() {
				return model.ErrRequestAlreadyPaid
			}
			return model.ErrRequestNotAccepted
		}

		now := s.now()
		if !s.windowElapsed(now, req) {
			return model.ErrRequestNotLocked
		}

		offer, err := tx.GetOffer(ctx, offerID)
		if err != nil {
			return err
		}
		if offer.RequestID != req.ID {
			return model.ErrOfferRequestMismatch
		}
		if !offer.IsAccepted {
			return model.ErrRequestNotAccepted
		}
		if offer.SellerID != req.LockedSellerID {
			return model.ErrInvalidSeller
		}

		var recipient int64
		switch instrument {
		case model.InstrumentNative:
			recipient = s.cfg.Treasury
		case model.InstrumentToken:
			recipient = s.cfg.TokenTreasury
		default:
			return model.ErrInvalidCoinPayment
		}

		payment = &model.RequestPayment{
			RequestID:  req.ID,
			OfferID:    offer.ID,
			Payer:      authority,
			Recipient:  recipient,
			Instrument: instrument,
			Amount:     offer.Price,
			Price:      offer.Price,
			CreatedAt:  now,
		}

		if instrument == model.InstrumentToken {
			if s.oracle == nil {
				return fmt.Errorf("%w: oracle is not configured", model.ErrPriceUnavailable)
			}
			p, err := s.oracle.GetPrice(ctx, s.cfg.PriceFeedID)
			if err != nil {
				return err
			}
			amount, err := oracle.Convert(offer.Price, p, s.cfg.NativeDecimals, s.cfg.TokenDecimals)
			if err != nil {
				return err
			}
			if amount <= 0 {
				return model.ErrInvalidAmount
			}
			payment.Amount = amount
			payment.PriceValue = p.Value
			payment.PriceExpo = p.Expo
		}

		req.Paid = true
		req.Lifecycle = model.LifecyclePaid
		req.UpdatedAt = now
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return err
		}

		if err := tx.Debit(ctx, authority, instrument, payment.Amount); err != nil {
			return err
		}
		if err := tx.Credit(ctx, recipient, instrument, payment.Amount); err != nil {
			return err
		}

		id, err := tx.NextID(ctx, model.CounterRequestPayment)
		if err != nil {
			return err
		}
		payment.ID = id
		if err := tx.CreatePayment(ctx, payment); err != nil {
			return err
		}

		events = append(events, model.NewEvent(model.EventRequestPaid, key(req.ID), now, model.RequestPaid{
			RequestID:  req.ID,
			OfferID:    offer.ID,
			PaymentID:  payment.ID,
			Instrument: instrument,
			Amount:     payment.Amount,
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}

	paymentsTotal.WithLabelValues(string(instrument)).Inc()
	paidAmountTotal.WithLabelValues(string(instrument)).Add(float64(payment.Amount))

	s.publish(ctx, events)
	return payment, nil
}

// Deposit зачисляет средства на кошелёк учётной записи.
func (s *Service) Deposit(ctx context.Context, authority int64, instrument model.Instrument, amount int64) ([]model.Balance, error) {
	if instrument != model.InstrumentNative && instrument != model.InstrumentToken {
		return nil, model.ErrInvalidCoinPayment
	}
	if amount <= 0 {
		return nil, model.ErrInvalidAmount
	}

	var balances []model.Balance
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.Credit(ctx, authority, instrument, amount); err != nil {
			return err
		}
		b, err := tx.GetBalances(ctx, authority)
		balances = b
		return err
	})
	if err != nil {
		return nil, err
	}
	return balances, nil
}

// GetBalances возвращает остатки кошелька учётной записи.
func (s *Service) GetBalances(ctx context.Context, authority int64) ([]model.Balance, error) {
	var balances []model.Balance
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		b, err := tx.GetBalances(ctx, authority)
		balances = b
		return err
	})
	return balances, err
}

// ListPayments возвращает оплаты заявки. Доступно только владельцу заявки.
func (s *Service) ListPayments(ctx context.Context, authority, requestID int64) ([]model.RequestPayment, error) {
	var payments []model.RequestPayment
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		req, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Authority != authority {
			return model.ErrInvalidUser
		}
		p, err := tx.ListPaymentsByRequest(ctx, requestID)
		payments = p
		return err
	})
	return payments, err
}
