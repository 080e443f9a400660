package domain

import (
	"errors"
	"fmt"
)

// Error codes surfaced by the settlement engine. They are stable API: the
// HTTP layer maps them to status codes and clients branch on them.
const (
	CodeOrderNotFound          = "ORDER_NOT_FOUND"
	CodePaymentNotFound        = "PAYMENT_NOT_FOUND"
	CodeSplitNotFound          = "SPLIT_NOT_FOUND"
	CodePaymentNotReady        = "PAYMENT_NOT_READY"
	CodeInvalidAmount          = "INVALID_AMOUNT"
	CodeAmountMismatch         = "PAYMENT_AMOUNT_MISMATCH"
	CodeGatewayAmountMismatch  = "PAYMENT_CONFIRM_AMOUNT_MISMATCH"
	CodeInvalidCancelAmount    = "INVALID_CANCEL_AMOUNT"
	CodeExceedCancelAmount     = "EXCEED_CANCEL_AMOUNT"
	CodeExceedSplitCancel      = "EXCEED_SPLIT_CANCEL_AMOUNT"
	CodeExceedPaymentCancel    = "EXCEED_PAYMENT_CANCEL_AMOUNT"
	CodeAlreadyCancelled       = "ALREADY_CANCELLED"
	CodeOrderItemsEmpty        = "ORDER_ITEMS_EMPTY"
	CodeOrderMismatch          = "ORDER_MISMATCH"
	CodeLockConflict           = "LOCK_CONFLICT"
	CodeGatewayError           = "GATEWAY_ERROR"
)

// Error is a typed settlement error carrying a stable code.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a settlement error with the given code and message.
func E(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds a settlement error around a lower-level cause.
func Wrap(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the settlement error code from err, or "" if err is not
// (and does not wrap) a settlement error.
func CodeOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// ErrLedgerOverflow marks a monetary invariant violation: a cancellation that
// would push the canceled total past the authorized amount. This is a
// programming-level fault, not a client error, and must abort the operation
// before anything is persisted.
var ErrLedgerOverflow = errors.New("settlement: canceled amount exceeds authorized amount")
