package arcgis

import "fmt"

// ErrorKind classifies a failed request for the fetcher's retry policy.
type ErrorKind string

const (
	// KindNetwork covers connection failures and request timeouts.
	KindNetwork ErrorKind = "network"
	// KindServer covers 5xx responses and server-reported faults.
	KindServer ErrorKind = "server"
	// KindMalformed covers non-JSON bodies and terminal server faults.
	KindMalformed ErrorKind = "malformed"
)

// RequestError is a classified failure of one feature or metadata query.
type RequestError struct {
	Kind ErrorKind
	Err  error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth retrying at the chunk level.
func (e *RequestError) Transient() bool {
	return e.Kind == KindNetwork || e.Kind == KindServer
}
