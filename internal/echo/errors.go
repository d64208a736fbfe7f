package echo

import "errors"

var (
	// ErrInvalidPort is returned for ports outside 0-65535.
	ErrInvalidPort = errors.New("invalid port")
	// ErrInvalidMode is returned for a server mode other than tcp or tls.
	ErrInvalidMode = errors.New("invalid mode")
	// ErrAlreadyAccepted is returned when a listener is asked for a second peer.
	ErrAlreadyAccepted = errors.New("listener already accepted its connection")
	// ErrTLSProvisioning covers unreadable or malformed certificate material and bad TLS settings.
	ErrTLSProvisioning = errors.New("tls provisioning failed")
	// ErrHandshake is returned when the server side TLS handshake fails.
	ErrHandshake = errors.New("tls handshake failed")
)
