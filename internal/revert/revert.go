// Package revert defines the rejection reasons surfaced when a ledger
// transaction aborts. Every error carries a kind and a short
// machine-readable code.
package revert

import "errors"

// Kind groups codes by failure class.
type Kind uint8

const (
	KindAuthorization Kind = iota + 1
	KindValidation
	KindSignature
	KindCapacity
	KindTemporal
	KindPayment
	KindState
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "AUTHORIZATION"
	case KindValidation:
		return "VALIDATION"
	case KindSignature:
		return "SIGNATURE"
	case KindCapacity:
		return "CAPACITY"
	case KindTemporal:
		return "TEMPORAL"
	case KindPayment:
		return "PAYMENT"
	case KindState:
		return "STATE"
	default:
		return "UNKNOWN"
	}
}

// Error is a transaction rejection reason. Values are compared by identity,
// so callers match them with errors.Is against the sentinels below.
type Error struct {
	Kind Kind
	Code string
}

func (e *Error) Error() string { return e.Code }

func newError(k Kind, code string) *Error { return &Error{Kind: k, Code: code} }

// Authorization
var (
	ErrNotOwner            = newError(KindAuthorization, "NotOwner")
	ErrNotAssetOwner       = newError(KindAuthorization, "NotAssetOwner")
	ErrNotRequester        = newError(KindAuthorization, "NotRequester")
	ErrNotAuthorized       = newError(KindAuthorization, "NotAuthorized")
	ErrCallerMustBeAccount = newError(KindAuthorization, "CallerMustBeAccount")
)

// Validation
var (
	ErrLengthMismatch  = newError(KindValidation, "LengthMismatch")
	ErrRateOutOfRange  = newError(KindValidation, "RateOutOfRange")
	ErrNotAContract    = newError(KindValidation, "NotAContract")
	ErrInvalidQuantity = newError(KindValidation, "InvalidQuantity")
	ErrInvalidOwnerSet = newError(KindValidation, "InvalidOwnerSet")
)

// Signature
var (
	ErrSignerMismatch      = newError(KindSignature, "SignerMismatch")
	ErrInvalidTicketSigner = newError(KindSignature, "InvalidTicketSigner")
	ErrTopicMismatch       = newError(KindSignature, "TopicMismatch")
	ErrSenderMismatch      = newError(KindSignature, "SenderMismatch")
	ErrNonceMismatch       = newError(KindSignature, "NonceMismatch")
)

// Capacity
var (
	ErrSupplyExceeded            = newError(KindCapacity, "SupplyExceeded")
	ErrSupplyExhausted           = newError(KindCapacity, "SupplyExhausted")
	ErrPerRequesterCapExceeded   = newError(KindCapacity, "PerRequesterCapExceeded")
	ErrInsufficientTicketBalance = newError(KindCapacity, "InsufficientTicketBalance")
)

// Temporal
var ErrScheduleExpired = newError(KindTemporal, "ScheduleExpired")

// Payment
var (
	ErrUnderpaid           = newError(KindPayment, "Underpaid")
	ErrInsufficientBalance = newError(KindPayment, "InsufficientBalance")
	ErrZeroPayment         = newError(KindPayment, "ZeroPayment")
)

// State
var (
	ErrSaleEnded           = newError(KindState, "SaleEnded")
	ErrSaleNotActive       = newError(KindState, "SaleNotActive")
	ErrAlreadyRevealed     = newError(KindState, "AlreadyRevealed")
	ErrAlreadyWithdrawn    = newError(KindState, "AlreadyWithdrawn")
	ErrAlreadyVoted        = newError(KindState, "AlreadyVoted")
	ErrNotYetApproved      = newError(KindState, "NotYetApproved")
	ErrConsensusNotReached = newError(KindState, "ConsensusNotReached")
	ErrRequestNotFound     = newError(KindState, "RequestNotFound")
	ErrWrongAsset          = newError(KindState, "WrongAsset")
	ErrWrongBeneficiary    = newError(KindState, "WrongBeneficiary")
	ErrContractNotFound    = newError(KindState, "ContractNotFound")
	ErrTokenNotFound       = newError(KindState, "TokenNotFound")
)

// CodeOf returns the machine-readable code of the first revert.Error in
// err's chain, or "" if there is none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// KindOf returns the kind of the first revert.Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
