package domain

import "errors"

var (
	// ErrMalformedMessage is per message: log and skip, never fatal to the connection.
	ErrMalformedMessage = errors.New("malformed message")
	// ErrTransportFailure triggers a supervised reconnect.
	ErrTransportFailure = errors.New("transport failure")
	// ErrAuthExhausted disables the affected connector only.
	ErrAuthExhausted = errors.New("authentication attempts exhausted")
	// ErrPersist is logged by the sink; the stream continues.
	ErrPersist = errors.New("persist failed")
	// ErrNoData means the merge was empty. It is a result, not a failure.
	ErrNoData = errors.New("no data")
	// ErrQueryFailure is surfaced to the caller as a generic failure.
	ErrQueryFailure = errors.New("query failed")
	// ErrConnectorDisabled marks a connector parked until process restart.
	ErrConnectorDisabled = errors.New("connector disabled")
	ErrUnknownExchange   = errors.New("unknown exchange")
)
