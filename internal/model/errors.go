package model

import "errors"

// ErrorKind классифицирует доменную ошибку.
type ErrorKind string

const (
	KindAlreadyExists         ErrorKind = "AlreadyExists"
	KindNotFound              ErrorKind = "NotFound"
	KindInvalidArgument       ErrorKind = "InvalidArgument"
	KindInvalidRole           ErrorKind = "InvalidRole"
	KindUnauthorized          ErrorKind = "Unauthorized"
	KindAlreadyInTargetState  ErrorKind = "AlreadyInTargetState"
	KindInvalidState          ErrorKind = "InvalidState"
	KindWindowViolation       ErrorKind = "WindowViolation"
	KindCardinalityMismatch   ErrorKind = "CardinalityMismatch"
	KindInvalidLinkage        ErrorKind = "InvalidLinkage"
	KindUnsupportedInstrument ErrorKind = "UnsupportedInstrument"
	KindInsufficientFunds     ErrorKind = "InsufficientFunds"
	KindOracleStale           ErrorKind = "OracleStale"
	KindOracleUnavailable     ErrorKind = "OracleUnavailable"
)

// Error — доменная ошибка с видом и человекочитаемым сообщением.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// KindOf возвращает вид доменной ошибки из цепочки err или пустую строку.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

var (
	ErrAccountExists     = newError(KindAlreadyExists, "account already exists")
	ErrUserAlreadyExists = newError(KindAlreadyExists, "user already exists")

	ErrAccountNotFound = newError(KindNotFound, "account not found")
	ErrUserNotFound    = newError(KindNotFound, "user not found")
	ErrRequestNotFound = newError(KindNotFound, "request not found")
	ErrOfferNotFound   = newError(KindNotFound, "offer not found")

	ErrInvalidAccountType = newError(KindInvalidArgument, "invalid account type")
	ErrInvalidPrice       = newError(KindInvalidArgument, "price must be positive")
	ErrInvalidAmount      = newError(KindInvalidArgument, "amount must be positive")
	ErrAmountOverflow     = newError(KindInvalidArgument, "converted amount out of range")

	ErrOnlySellersAllowed = newError(KindInvalidRole, "only sellers allowed")
	ErrOnlyBuyersAllowed  = newError(KindInvalidRole, "only buyers allowed")

	ErrInvalidCredentials = newError(KindUnauthorized, "invalid credentials")
	ErrInvalidUser        = newError(KindUnauthorized, "invalid user")
	ErrUnauthorizedBuyer  = newError(KindUnauthorized, "unauthorized buyer")

	ErrOfferAlreadyAccepted = newError(KindAlreadyInTargetState, "offer already accepted")
	ErrRequestAlreadyPaid   = newError(KindAlreadyInTargetState, "request already paid")

	ErrRequestNotAccepted = newError(KindInvalidState, "request not accepted")
	ErrRequestNotPaid     = newError(KindInvalidState, "request not paid")

	ErrRequestLocked    = newError(KindWindowViolation, "request locked")
	ErrRequestNotLocked = newError(KindWindowViolation, "request not locked")

	ErrIncorrectNumberOfSellers = newError(KindCardinalityMismatch, "incorrect number of sellers")

	ErrInvalidSeller        = newError(KindInvalidLinkage, "invalid seller")
	ErrOfferRequestMismatch = newError(KindInvalidLinkage, "offer does not belong to request")

	ErrInvalidCoinPayment = newError(KindUnsupportedInstrument, "invalid coin payment")

	ErrInsufficientFunds = newError(KindInsufficientFunds, "insufficient funds")

	ErrStalePrice       = newError(KindOracleStale, "stale price")
	ErrPriceUnavailable = newError(KindOracleUnavailable, "price unavailable")
)
