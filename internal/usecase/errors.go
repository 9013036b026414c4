package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

type HTTPError struct {
	Status  int
	Message string
	// errors.Isで種類を判定するための元エラー（任意）
	Err error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func wrapHTTPError(status int, message string, kind error) error {
	return &HTTPError{
		Status:  status,
		Message: message,
		Err:     kind,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// 業務エラーの種類
var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrPromotionRejected = errors.New("promotion rejected")
	ErrPaymentGateway    = errors.New("payment gateway error")
)

func errDB() error {
	return NewHTTPError(http.StatusInternalServerError, "db error")
}

func errUnauthorized() error {
	return NewHTTPError(http.StatusUnauthorized, "unauthorized")
}

func errNotFound() error {
	return NewHTTPError(http.StatusNotFound, "not found")
}
