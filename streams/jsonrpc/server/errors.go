package server

import (
	"errors"

	"github.com/Iwinswap/iwinswap-amm-router/pkg/dexerr"
)

// JSON-RPC error codes returned for each error kind. The kind name is attached as the
// error's data field.
const (
	CodeUnknown         = -32000
	CodeInputValidation = -32602
	CodeInternal        = -32603
	CodeLiquidity       = -33001
	CodeSlippage        = -33002
	CodeIdentity        = -33003
)

// Error is a classified error as sent over JSON-RPC.
type Error struct {
	code int
	kind dexerr.Kind
	err  error
}

func (e *Error) Error() string { return e.err.Error() }

// ErrorCode implements rpc.Error.
func (e *Error) ErrorCode() int { return e.code }

// ErrorData implements rpc.DataError.
func (e *Error) ErrorData() interface{} { return e.kind.String() }

func (e *Error) Unwrap() error { return e.err }

func codeOf(kind dexerr.Kind) int {
	switch kind {
	case dexerr.KindInputValidation:
		return CodeInputValidation
	case dexerr.KindLiquidity:
		return CodeLiquidity
	case dexerr.KindSlippage:
		return CodeSlippage
	case dexerr.KindIdentity:
		return CodeIdentity
	case dexerr.KindInternal:
		return CodeInternal
	default:
		return CodeUnknown
	}
}

// wrapError classifies err for the wire. It returns nil for a nil error.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	kind := dexerr.KindOf(err)
	return &Error{code: codeOf(kind), kind: kind, err: err}
}
