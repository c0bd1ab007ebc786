// Package errkind defines this bridge's error taxonomy as sentinel values
// wrapped with context, so callers can errors.Is/errors.As instead of
// matching on strings.
package errkind

import "fmt"

// Kind identifies one of the named error categories callers can match on.
type Kind string

const (
	NoDeviceAttached      Kind = "NoDeviceAttached"
	AmbiguousDevice       Kind = "AmbiguousDevice"
	AdbInvocationFailed   Kind = "AdbInvocationFailed"
	AdbTimeout            Kind = "AdbTimeout"
	ServerNotFound        Kind = "ServerNotFound"
	DummyByteMissing      Kind = "DummyByteMissing"
	MetadataTimeout       Kind = "MetadataTimeout"
	TransportBroken       Kind = "TransportBroken"
	ClipboardTimeout      Kind = "ClipboardTimeout"
	TextTooLong           Kind = "TextTooLong"
	PackageNameTooLong    Kind = "PackageNameTooLong"
	UnknownKeycode        Kind = "UnknownKeycode"
	InvalidPackageName    Kind = "InvalidPackageName"
	OversizeClipboardReply Kind = "OversizeClipboardReply"
)

// Error wraps a Kind with a human-readable message and optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, errkind.New(K, "")) match on Kind alone, ignoring
// Message/Cause, so call sites can write errors.Is(err, errkind.Of(K)).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error for the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error for the given kind, carrying cause as the
// underlying error (retrievable via errors.Unwrap).
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Of returns a bare marker error for the given kind, suitable as the target
// of errors.Is.
func Of(kind Kind) *Error { return &Error{Kind: kind} }
