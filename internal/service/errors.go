package service

import "errors"

// Rejection kinds for a purchase. Each one is terminal for the call and
// leaves the ledger untouched.
var (
	ErrItemNotFound          = errors.New("item not found")
	ErrItemUnavailable       = errors.New("item is not available")
	ErrSelfPurchaseForbidden = errors.New("seller cannot buy own item")
	ErrUserNotFound          = errors.New("user not found")
	ErrInsufficientFunds     = errors.New("not enough balance")
)

// StorageError reports a transaction that could not be read or committed.
// It is the only failure kind safe for the caller to retry: the store's
// atomicity guarantee means nothing was applied, and a retry against a state
// that already reflects success is rejected as ErrItemUnavailable.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return "storage failure: " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsRejection reports whether err is one of the validation rejections, as
// opposed to a storage failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrItemUnavailable) ||
		errors.Is(err, ErrSelfPurchaseForbidden) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrInsufficientFunds)
}
