// =============================
// File: internal/sale/errors.go
// =============================
package sale

import (
	"errors"
	"fmt"

	"github.com/rovshanmuradov/yozoon/internal/curve"
)

// Code is the numeric program error code. Custom codes start at 6000.
type Code uint32

// Category groups error codes by what went wrong.
type Category string

const (
	CategoryAuthorization Category = "authorization"
	CategoryState         Category = "state"
	CategoryValidation    Category = "validation"
	CategoryEconomic      Category = "economic"
	CategoryMigration     Category = "migration"
)

// Error is a program error surfaced to callers as a code/name/message triple.
type Error struct {
	Code     Code
	Name     string
	Msg      string
	category Category
	cause    error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s (%d): %s: %v", e.Name, e.Code, e.Msg, e.cause)
	}
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Msg)
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func (e *Error) Unwrap() error { return e.cause }

// Category reports the error class.
func (e *Error) Category() Category { return e.category }

// Wrap returns a copy of e that records cause.
func (e *Error) Wrap(cause error) *Error {
	c := *e
	c.cause = cause
	return &c
}

// Wrapf is Wrap with a formatted cause.
func (e *Error) Wrapf(format string, args ...any) *Error {
	return e.Wrap(fmt.Errorf(format, args...))
}

var registry = map[Code]*Error{}

func newError(code Code, category Category, name, msg string) *Error {
	e := &Error{Code: code, Name: name, Msg: msg, category: category}
	if _, dup := registry[code]; dup {
		panic(fmt.Sprintf("duplicate error code %d", code))
	}
	registry[code] = e
	return e
}

// The first nine codes keep the order of the deployed program.
var (
	ErrInvalidPricePoints           = newError(6000, CategoryValidation, "InvalidPricePoints", "Invalid price points, must have at least 2 points in ascending order")
	ErrAdminOnly                    = newError(6001, CategoryAuthorization, "AdminOnly", "This action can only be performed by the admin")
	ErrProtocolPaused               = newError(6002, CategoryState, "ProtocolPaused", "Protocol is currently paused")
	ErrInsufficientSolAmount        = newError(6003, CategoryEconomic, "InsufficientSolAmount", "Purchase amount is below minimum threshold")
	ErrMinimumSaleAmount            = newError(6004, CategoryValidation, "MinimumSaleAmount", "Sale amount is below minimum threshold")
	ErrInvalidReferralFee           = newError(6005, CategoryValidation, "InvalidReferralFee", "Referral fee exceeds maximum allowed value")
	ErrInsufficientReserve          = newError(6006, CategoryEconomic, "InsufficientReserve", "Insufficient reserve balance for this transaction")
	ErrMigrationThresholdNotReached = newError(6007, CategoryMigration, "MigrationThresholdNotReached", "Migration threshold has not been met yet")
	ErrAlreadyMigrated              = newError(6008, CategoryState, "AlreadyMigrated", "Bonding curve has already been migrated")

	ErrUnauthorized              = newError(6009, CategoryAuthorization, "Unauthorized", "Signer is not authorized for this action")
	ErrSlippageExceeded          = newError(6010, CategoryEconomic, "SlippageExceeded", "Output is below the caller's minimum")
	ErrInsufficientSupply        = newError(6011, CategoryEconomic, "InsufficientSupply", "Amount exceeds total sold supply")
	ErrInsufficientTokenBalance  = newError(6012, CategoryEconomic, "InsufficientTokenBalance", "Seller does not hold enough tokens")
	ErrDustAmount                = newError(6013, CategoryEconomic, "DustAmount", "Amount is too small to produce any output")
	ErrSelfReferral              = newError(6014, CategoryValidation, "SelfReferral", "A buyer cannot refer themselves")
	ErrReferralAlreadyExists     = newError(6015, CategoryState, "ReferralAlreadyExists", "Referral account already exists")
	ErrReferralNotFound          = newError(6016, CategoryState, "ReferralNotFound", "Referral account does not exist")
	ErrAirdropAlreadyExists      = newError(6017, CategoryState, "AirdropAlreadyExists", "Airdrop already exists for this recipient")
	ErrAirdropNotFound           = newError(6018, CategoryState, "AirdropNotFound", "No airdrop exists for this recipient")
	ErrAirdropAlreadyClaimed     = newError(6019, CategoryState, "AirdropAlreadyClaimed", "Airdrop has already been claimed")
	ErrAirdropAllocationExceeded = newError(6020, CategoryEconomic, "AirdropAllocationExceeded", "Airdrop allocation exhausted")
	ErrInvalidAmount             = newError(6021, CategoryValidation, "InvalidAmount", "Amount must be greater than zero")
	ErrInvalidAdmin              = newError(6022, CategoryValidation, "InvalidAdmin", "Proposed admin is invalid")
	ErrInvalidAccount            = newError(6023, CategoryValidation, "InvalidAccount", "Account address is invalid")
	ErrAlreadyInitialized        = newError(6024, CategoryState, "AlreadyInitialized", "Account is already initialized")
	ErrNotInitialized            = newError(6025, CategoryState, "NotInitialized", "Account is not initialized")
	ErrMigrationWindowClosed     = newError(6026, CategoryMigration, "MigrationWindowClosed", "Raised SOL exceeded the migration window")
	ErrMigrationFailed           = newError(6027, CategoryMigration, "MigrationFailed", "Liquidity pool creation failed")
	ErrMathOverflow              = newError(6028, CategoryEconomic, "MathOverflow", "Arithmetic overflow")
	ErrSupplyExceeded            = newError(6029, CategoryEconomic, "SupplyExceeded", "Purchase exceeds maximum supply")
	ErrInvalidStateTransition    = newError(6030, CategoryState, "InvalidStateTransition", "State transition is not allowed")
)

// ErrorFromCode returns the error registered for code.
func ErrorFromCode(code Code) (*Error, bool) {
	e, ok := registry[code]
	return e, ok
}

// AsError extracts the program error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func fromCurve(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, curve.ErrInvalidPricePoints):
		return ErrInvalidPricePoints.Wrap(err)
	case errors.Is(err, curve.ErrInsufficientSupply):
		return ErrInsufficientSupply.Wrap(err)
	case errors.Is(err, curve.ErrSupplyExceeded):
		return ErrSupplyExceeded.Wrap(err)
	case errors.Is(err, curve.ErrMathOverflow):
		return ErrMathOverflow.Wrap(err)
	}
	return err
}
