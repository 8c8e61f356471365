package service

import (
	"context"
	"fmt"

	"github.com/mmeshcher/marketplace/internal/model"
	"github.com/mmeshcher/marketplace/internal/repository"
)

// ProfileInput содержит данные профиля пользователя.
type ProfileInput struct {
	Username    string
	Phone       string
	Location    model.Location
	AccountType model.AccountType
}

// StoreInput содержит данные витрины продавца.
type StoreInput struct {
	Name        string
	Description string
	Phone       string
	Location    model.Location
}

// CreateUser создаёт профиль для учётной записи. Повторное создание отклоняется.
func (s *Service) CreateUser(ctx context.Context, authority int64, in ProfileInput) (*model.User, error) {
	if !in.AccountType.Valid() {
		return nil, model.ErrInvalidAccountType
	}

	var user *model.User
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.GetUserByAuthority(ctx, authority); err == nil {
			return model.ErrUserAlreadyExists
		} else if model.KindOf(err) != model.KindNotFound {
			return err
		}

		id, err := tx.NextID(ctx, model.CounterUser)
		if err != nil {
			return err
		}

		now := s.now()
		user = &model.User{
			ID:              id,
			Authority:       authority,
			Username:        in.Username,
			Phone:           in.Phone,
			Location:        in.Location,
			AccountType:     in.AccountType,
			LocationEnabled: true,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return tx.CreateUser(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUser обновляет профиль, включая роль.
func (s *Service) UpdateUser(ctx context.Context, authority int64, in ProfileInput) (*model.User, error) {
	if !in.AccountType.Valid() {
		return nil, model.ErrInvalidAccountType
	}

	var user *model.User
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		u, err := tx.GetUserByAuthority(ctx, authority)
		if err != nil {
			return err
		}

		u.Username = in.Username
		u.Phone = in.Phone
		u.Location = in.Location
		u.AccountType = in.AccountType
		u.UpdatedAt = s.now()

		user = u
		return tx.UpdateUser(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser возвращает профиль учётной записи.
func (s *Service) GetUser(ctx context.Context, authority int64) (*model.User, error) {
	var user *model.User
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		u, err := tx.GetUserByAuthority(ctx, authority)
		user = u
		return err
	})
	return user, err
}

// ToggleLocation включает или выключает использование геолокации.
func (s *Service) ToggleLocation(ctx context.Context, authority int64, enabled bool) error {
	var events []model.Event
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		u, err := tx.GetUserByAuthority(ctx, authority)
		if err != nil {
			return err
		}

		u.LocationEnabled = enabled
		if err := tx.UpdateUser(ctx, u); err != nil {
			return err
		}

		events = append(events, model.NewEvent(model.EventLocationToggled, key(u.ID), s.now(), model.LocationToggled{
			UserID:          u.ID,
			LocationEnabled: enabled,
		}))
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events)
	return nil
}

// GetLocationPreference возвращает настройку геолокации.
func (s *Service) GetLocationPreference(ctx context.Context, authority int64) (bool, error) {
	u, err := s.GetUser(ctx, authority)
	if err != nil {
		return false, err
	}
	return u.LocationEnabled, nil
}

// CreateStore создаёт витрину. Доступно только продавцам.
func (s *Service) CreateStore(ctx context.Context, authority int64, in StoreInput) (*model.Store, error) {
	var (
		store  *model.Store
		events []model.Event
	)
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := userWithRole(ctx, tx, authority, model.AccountTypeSeller, model.ErrOnlySellersAllowed); err != nil {
			return err
		}

		id, err := tx.NextID(ctx, model.CounterStore)
		if err != nil {
			return err
		}

		store = &model.Store{
			ID:          id,
			Authority:   authority,
			Name:        in.Name,
			Description: in.Description,
			Phone:       in.Phone,
			Location:    in.Location,
		}
		if err := tx.CreateStore(ctx, store); err != nil {
			return fmt.Errorf("create store: %w", err)
		}

		events = append(events, model.NewEvent(model.EventStoreCreated, key(authority), s.now(), model.StoreCreated{
			StoreID:   store.ID,
			Authority: authority,
			StoreName: store.Name,
			Location:  store.Location,
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events)
	return store, nil
}
