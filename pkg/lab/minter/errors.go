package minter

// Kind classifies an orchestration failure. The web layer maps kinds onto
// http status codes; nothing switches on message text.
type Kind uint8

const (
	KindUnknown Kind = iota

	// KindValidation is a user-correctable request error
	KindValidation

	// KindConfiguration is a missing or unusable server-side secret or
	// environment value
	KindConfiguration

	// KindDownstream is a failed call to the price api, pinning api, rpc
	// node, or an on-chain program
	KindDownstream

	// KindSimulation is a failed pre-flight transaction simulation
	KindSimulation
)

// Error is a classified orchestration failure with a fixed user-facing
// message. The cause is logged server-side but never exposed to the client.
type Error struct {
	kind    Kind
	message string
	cause   error
}

func NewError(kind Kind, message string, cause error) *Error {
	return &Error{
		kind:    kind,
		message: message,
		cause:   cause,
	}
}

func NewValidationError(message string) *Error {
	return NewError(KindValidation, message, nil)
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) Kind() Kind {
	return e.kind
}
