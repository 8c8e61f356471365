package service

import (
	"context"
	"slices"

	"github.com/mmeshcher/marketplace/internal/model"
	"github.com/mmeshcher/marketplace/internal/repository"
)

// RequestInput содержит данные новой заявки покупателя.
type RequestInput struct {
	Name        string
	Description string
	Images      []string
	Location    model.Location
}

// OfferInput содержит данные нового предложения продавца.
type OfferInput struct {
	Price     int64
	Images    []string
	StoreName string
}

// CreateRequest создаёт заявку в состоянии Pending. Доступно только покупателям.
func (s *Service) CreateRequest(ctx context.Context, authority int64, in RequestInput) (*model.Request, error) {
	var (
		req    *model.Request
		events []model.Event
	)
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		buyer, err := userWithRole(ctx, tx, authority, model.AccountTypeBuyer, model.ErrOnlyBuyersAllowed)
		if err != nil {
			return err
		}

		id, err := tx.NextID(ctx, model.CounterRequest)
		if err != nil {
			return err
		}

		now := s.now()
		req = &model.Request{
			ID:          id,
			Authority:   authority,
			BuyerID:     buyer.ID,
			Name:        in.Name,
			Description: in.Description,
			Images:      slices.Clone(in.Images),
			Location:    in.Location,
			SellerIDs:   []int64{},
			OfferIDs:    []int64{},
			Lifecycle:   model.LifecyclePending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.CreateRequest(ctx, req); err != nil {
			return err
		}

		events = append(events, model.NewEvent(model.EventRequestCreated, key(req.ID), now, model.RequestCreated{
			RequestID:         req.ID,
			Authority:         authority,
			BuyerID:           req.BuyerID,
			Name:              req.Name,
			Description:       req.Description,
			Images:            req.Images,
			Location:          req.Location,
			Lifecycle:         req.Lifecycle,
			SellerIDs:         req.SellerIDs,
			SellersPriceQuote: req.SellersPriceQuote,
			LockedSellerID:    req.LockedSellerID,
			CreatedAt:         req.CreatedAt,
			UpdatedAt:         req.UpdatedAt,
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events)
	return req, nil
}

// CreateOffer добавляет предложение продавца к заявке. Первое предложение
// переводит заявку из Pending в AcceptedBySeller.
func (s *Service) CreateOffer(ctx context.Context, authority, requestID int64, in OfferInput) (*model.Offer, error) {
	var (
		offer  *model.Offer
		events []model.Event
	)
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		seller, err := userWithRole(ctx, tx, authority, model.AccountTypeSeller, model.ErrOnlySellersAllowed)
		if err != nil {
			return err
		}
		if in.Price <= 0 {
			return model.ErrInvalidPrice
		}

		req, err := tx.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}

		now := s.now()
		if req.Lifecycle.Settled() || s.locked(now, req) {
			return model.ErrRequestLocked
		}

		id, err := tx.NextID(ctx, model.CounterOffer)
		if err != nil {
			return err
		}

		offer = &model.Offer{
			ID:        id,
			Authority: authority,
			RequestID: req.ID,
			SellerID:  seller.ID,
			Price:     in.Price,
			Images:    slices.Clone(in.Images),
			StoreName: in.StoreName,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.CreateOffer(ctx, offer); err != nil {
			return err
		}

		if req.Lifecycle == model.LifecyclePending {
			req.Lifecycle = model.LifecycleAcceptedBySeller
		}
		req.SellerIDs = append(req.SellerIDs, seller.ID)

		if err := tx.UpdateRequest(ctx, req); err != nil {
			return err
		}

		events = append(events, model.NewEvent(model.EventOfferCreated, key(req.ID), now, model.OfferCreated{
			OfferID:   offer.ID,
			Authority: authority,
			StoreName: offer.StoreName,
			Price:     offer.Price,
			RequestID: req.ID,
			Images:    offer.Images,
			SellerID:  seller.ID,
			SellerIDs: slices.Clone(req.SellerIDs),
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events)
	return offer, nil
}

// AcceptOffer фиксирует выбор покупателя. В одной транзакции снимается признак
// принятия со всех ранее принятых предложений заявки, принимается offerID и
// заявка переходит в AcceptedByBuyer.
//
// expected — известный вызывающему набор конкурирующих предложений. Если он
// передан (не nil), его размер должен совпадать с числом продавцов заявки.
func (s *Service) AcceptOffer(ctx context.Context, authority, requestID, offerID int64, expected []int64) (*model.Request, error) {
	var (
		req    *model.Request
		events []model.Event
	)
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		buyer, err := userWithRole(ctx, tx, authority, model.AccountTypeBuyer, model.ErrOnlyBuyersAllowed)
		if err != nil {
			return err
		}

		req, err = tx.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.BuyerID != buyer.ID {
			return model.ErrUnauthorizedBuyer
		}

		offer, err := tx.GetOffer(ctx, offerID)
		if err != nil {
			return err
		}
		if offer.RequestID != req.ID {
			return model.ErrOfferRequestMismatch
		}
		if offer.IsAccepted {
			return model.ErrOfferAlreadyAccepted
		}

		now := s.now()
		if req.Lifecycle.Settled() || s.locked(now, req) {
			return model.ErrRequestLocked
		}

		if expected != nil && len(expected) != len(req.SellerIDs) {
			return model.ErrIncorrectNumberOfSellers
		}

		competing, err := tx.ListOffersByRequest(ctx, req.ID)
		if err != nil {
			return err
		}

		changed := make([]*model.Offer, 0, 2)
		for i := range competing {
			prev := &competing[i]
			if !prev.IsAccepted || prev.ID == offer.ID {
				continue
			}
			prev.IsAccepted = false
			prev.UpdatedAt = now
			changed = append(changed, prev)

			events = append(events, model.NewEvent(model.EventOfferAccepted, key(req.ID), now, model.OfferAccepted{
				OfferID:    prev.ID,
				Authority:  authority,
				IsAccepted: false,
			}))
		}

		// Снятые принятия записываются раньше нового, иначе на мгновение их было бы два.
		offer.IsAccepted = true
		offer.UpdatedAt = now
		changed = append(changed, offer)

		if err := tx.UpdateOffers(ctx, changed...); err != nil {
			return err
		}

		req.OfferIDs = append(req.OfferIDs, offer.ID)
		req.LockedSellerID = offer.SellerID
		req.SellersPriceQuote = offer.Price
		req.AcceptedOfferID = offer.ID
		req.Lifecycle = model.LifecycleAcceptedByBuyer
		req.UpdatedAt = now

		if err := tx.UpdateRequest(ctx, req); err != nil {
			return err
		}

		events = append(events,
			model.NewEvent(model.EventRequestAccepted, key(req.ID), now, model.RequestAccepted{
				RequestID:         req.ID,
				OfferID:           offer.ID,
				SellerID:          offer.SellerID,
				UpdatedAt:         req.UpdatedAt,
				SellersPriceQuote: req.SellersPriceQuote,
			}),
			model.NewEvent(model.EventOfferAccepted, key(req.ID), now, model.OfferAccepted{
				OfferID:    offer.ID,
				Authority:  authority,
				IsAccepted: true,
			}),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events)
	return req, nil
}

// DeleteRequest удаляет заявку владельца, пока она в состоянии Pending.
func (s *Service) DeleteRequest(ctx context.Context, authority, requestID int64) error {
	var events []model.Event
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		req, err := tx.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Authority != authority {
			return model.ErrInvalidUser
		}
		if req.Lifecycle != model.LifecyclePending {
			return model.ErrRequestLocked
		}

		if err := tx.DeleteRequest(ctx, req.ID); err != nil {
			return err
		}

		events = append(events, model.NewEvent(model.EventRequestDeleted, key(req.ID), s.now(), model.RequestDeleted{
			RequestID: req.ID,
		}))
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events)
	return nil
}

// MarkCompleted завершает оплаченную заявку после истечения окна блокировки.
func (s *Service) MarkCompleted(ctx context.Context, authority, requestID int64) (*model.Request, error) {
	var (
		req    *model.Request
		events []model.Event
	)
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		req, err = tx.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Authority != authority {
			return model.ErrInvalidUser
		}

		switch req.Lifecycle {
		case model.LifecyclePaid:
		case model.LifecycleAcceptedByBuyer:
			return model.ErrRequestNotPaid
		default:
			return model.ErrRequestNotAccepted
		}

		now := s.now()
		if !s.windowElapsed(now, req) {
			return model.ErrRequestNotLocked
		}

		req.Lifecycle = model.LifecycleCompleted
		req.UpdatedAt = now
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return err
		}

		events = append(events, model.NewEvent(model.EventRequestCompleted, key(req.ID), now, model.RequestCompleted{
			RequestID: req.ID,
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events)
	return req, nil
}

// GetRequest возвращает заявку по идентификатору.
func (s *Service) GetRequest(ctx context.Context, requestID int64) (*model.Request, error) {
	var req *model.Request
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		r, err := tx.GetRequest(ctx, requestID)
		req = r
		return err
	})
	return req, err
}

// ListRequests возвращает заявки учётной записи, новые первыми.
func (s *Service) ListRequests(ctx context.Context, authority int64) ([]model.Request, error) {
	var res []model.Request
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		r, err := tx.ListRequestsByAuthority(ctx, authority)
		res = r
		return err
	})
	return res, err
}

// ListOffers возвращает предложения по заявке.
func (s *Service) ListOffers(ctx context.Context, requestID int64) ([]model.Offer, error) {
	var res []model.Offer
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.GetRequest(ctx, requestID); err != nil {
			return err
		}
		o, err := tx.ListOffersByRequest(ctx, requestID)
		res = o
		return err
	})
	return res, err
}
