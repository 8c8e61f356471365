package service

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/marketplace/internal/model"
)

// RegisterAccount регистрирует новую учётную запись и возвращает её идентификатор.
func (s *Service) RegisterAccount(ctx context.Context, login, password string) (int64, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}
	return s.repo.CreateAccount(ctx, login, hashed)
}

// AuthenticateAccount проверяет логин и пароль и возвращает идентификатор учётной записи.
func (s *Service) AuthenticateAccount(ctx context.Context, login, password string) (int64, error) {
	a, err := s.repo.GetAccountByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return 0, model.ErrInvalidCredentials
		}
		return 0, err
	}

	if err := bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)); err != nil {
		return 0, model.ErrInvalidCredentials
	}

	return a.ID, nil
}
