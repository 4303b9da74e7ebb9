// Package dexerr defines the error taxonomy shared by the pricing, swap and routing packages.
//
// Every failure is one of a small set of kinds. Call sites wrap the sentinels below with
// fmt.Errorf("...: %w", ...) to add context; KindOf recovers the kind through any wrapping.
package dexerr

import "errors"

// Kind classifies a failure.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindInputValidation covers zero amounts, malformed paths and overflowing amounts.
	KindInputValidation
	// KindLiquidity covers empty or insufficient reserves and missing pairs.
	KindLiquidity
	// KindSlippage covers caller-supplied bounds that the realized price violates.
	KindSlippage
	// KindIdentity covers assets that canonicalize as equal.
	KindIdentity
	// KindInternal covers broken invariants inside the execution environment.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInputValidation:
		return "input_validation"
	case KindLiquidity:
		return "liquidity"
	case KindSlippage:
		return "slippage"
	case KindIdentity:
		return "identity"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a classified sentinel error.
type Error struct {
	kind Kind
	msg  string
}

// New creates a classified sentinel.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// Kind returns the classification of the error.
func (e *Error) Kind() Kind { return e.kind }

// KindOf returns the kind of the first classified error in err's chain,
// or KindUnknown if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

var (
	ErrInsufficientInput   = New(KindInputValidation, "insufficient input amount")
	ErrInsufficientOutput  = New(KindInputValidation, "insufficient output amount")
	ErrInsufficientAmount  = New(KindInputValidation, "insufficient amount")
	ErrInvalidPath         = New(KindInputValidation, "invalid swap path")
	ErrAmountOverflow      = New(KindInputValidation, "amount does not fit in 64 bits")
	ErrInsufficientBalance = New(KindInputValidation, "insufficient account balance")
	ErrUnknownAsset        = New(KindInputValidation, "unknown asset")
	ErrAmbiguousAsset      = New(KindInputValidation, "asset name resolves to more than one asset")

	ErrInsufficientLiquidity       = New(KindLiquidity, "insufficient liquidity")
	ErrPairNotCreated              = New(KindLiquidity, "pair not created")
	ErrPairAlreadyExists           = New(KindLiquidity, "pair already exists")
	ErrInsufficientLiquidityMinted = New(KindLiquidity, "insufficient liquidity minted")
	ErrInsufficientLiquidityBurned = New(KindLiquidity, "insufficient liquidity burned")

	ErrOutputBelowMinimum  = New(KindSlippage, "output below minimum")
	ErrInputAboveMaximum   = New(KindSlippage, "input above maximum")
	ErrInsufficientAAmount = New(KindSlippage, "insufficient amount of asset A")
	ErrInsufficientBAmount = New(KindSlippage, "insufficient amount of asset B")

	ErrIdenticalAssets = New(KindIdentity, "identical assets")

	ErrValueSpent        = New(KindInternal, "asset value already consumed")
	ErrValueMismatch     = New(KindInternal, "asset value of unexpected asset")
	ErrValueLeaked       = New(KindInternal, "asset value left unsettled")
	ErrInvariantViolated = New(KindInternal, "constant product invariant violated")
)
