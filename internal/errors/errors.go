package errors

import "fmt"

// ChainError covers network, RPC and signing failures raised while talking
// to the Ethereum node.
type ChainError struct {
	Operation string
	Err       error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("chain error during %s: %v", e.Operation, e.Err)
}

func (e *ChainError) Unwrap() error {
	return e.Err
}

// RevertError is returned when a submitted transaction was mined but the
// contract execution reverted.
type RevertError struct {
	Operation string
	TxHash    string
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("transaction reverted during %s: %s", e.Operation, e.TxHash)
}

// PreconditionError signals that a pipeline step could not be attempted at
// all, e.g. no pool exists for the requested pair and fee tier.
type PreconditionError struct {
	Check  string
	Detail string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition %s not met: %s", e.Check, e.Detail)
}

type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s - %v", e.StatusCode, e.Message, e.Err)
}

type WebSocketError struct {
	Operation string
	Err       error
}

func (e *WebSocketError) Error() string {
	return fmt.Sprintf("WebSocket error during %s: %v", e.Operation, e.Err)
}
