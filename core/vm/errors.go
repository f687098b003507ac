package vm

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrDepth                    = errors.New("max call depth exceeded")
	ErrNoCode                   = errors.New("no contract code at given address")
	ErrWriteProtection          = errors.New("write protection")
	ErrInsufficientBalance      = errors.New("insufficient balance for transfer")
	ErrContractAddressCollision = errors.New("contract address collision")
	ErrExecutionReverted        = errors.New("execution reverted")
	ErrUnknownBlueprint         = errors.New("unknown contract blueprint")
	ErrUnknownSelector          = errors.New("unknown function selector")
	ErrNotSystemContract        = errors.New("caller is not a system contract")
)

// revertSelector is the selector of the Solidity Error(string) type.
var revertSelector = crypto.Keccak256([]byte("Error(string)"))[:4]

// RevertError is returned by a contract that rejects a call. It is passed
// through every enclosing frame untouched, so the outermost caller sees the
// reason produced by the innermost contract.
type RevertError struct {
	reason string
	cause  error
}

// Revertf builds a revert with a formatted reason.
func Revertf(format string, args ...interface{}) *RevertError {
	return &RevertError{reason: fmt.Sprintf(format, args...)}
}

// Revert builds a revert carrying a sentinel cause, so that callers can
// match it with errors.Is.
func Revert(cause error) *RevertError {
	return &RevertError{reason: cause.Error(), cause: cause}
}

// RevertWith builds a revert with a formatted reason wrapping cause.
func RevertWith(cause error, format string, args ...interface{}) *RevertError {
	return &RevertError{reason: fmt.Sprintf(format, args...) + ": " + cause.Error(), cause: cause}
}

func (e *RevertError) Error() string {
	return ErrExecutionReverted.Error() + ": " + e.reason
}

// Reason returns the human readable revert reason.
func (e *RevertError) Reason() string { return e.reason }

func (e *RevertError) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrExecutionReverted}
	}
	return []error{ErrExecutionReverted, e.cause}
}

// ErrorData returns the ABI encoded Error(string) payload of the revert.
func (e *RevertError) ErrorData() []byte {
	typ, _ := abi.NewType("string", "", nil)
	packed, err := abi.Arguments{{Type: typ}}.Pack(e.reason)
	if err != nil {
		return nil
	}
	return append(append([]byte{}, revertSelector...), packed...)
}

// RevertReason extracts the revert reason from err, if any.
func RevertReason(err error) (string, bool) {
	var rev *RevertError
	if errors.As(err, &rev) {
		return rev.reason, true
	}
	return "", false
}
