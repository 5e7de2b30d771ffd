package tor

import "errors"

var (
	// ErrProxyNotSOCKS5 is returned when the proxy answers but does not speak
	// SOCKS5 without authentication.
	ErrProxyNotSOCKS5 = errors.New("proxy is not a SOCKS5 proxy")

	// ErrProxyCannotConnect is returned when no TCP connection to the proxy
	// could be made.
	ErrProxyCannotConnect = errors.New("cannot connect to SOCKS5 proxy")

	// ErrProxyTimeout is returned when the proxy does not answer in time.
	ErrProxyTimeout = errors.New("timeout connecting to SOCKS5 proxy")

	// ErrInvalidProxyAddress is returned for addresses not in host:port form.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrNotRunning is returned when a Client is requested from an embedded
	// daemon that has not been started.
	ErrNotRunning = errors.New("embedded Tor daemon is not running")
)

// ProxyStatus is the outcome of Client.CheckConnection.
type ProxyStatus int

const (
	// ProxyStatusOK means the proxy completed a SOCKS5 handshake.
	ProxyStatusOK ProxyStatus = iota
	// ProxyStatusWrongType means something answered that is not SOCKS5.
	ProxyStatusWrongType
	// ProxyStatusCannotConnect means the TCP connection failed.
	ProxyStatusCannotConnect
	// ProxyStatusTimeout means the check ran out of time.
	ProxyStatusTimeout
)

// String returns a human-readable description of the proxy status.
func (s ProxyStatus) String() string {
	switch s {
	case ProxyStatusOK:
		return "OK"
	case ProxyStatusWrongType:
		return "wrong type (not SOCKS5)"
	case ProxyStatusCannotConnect:
		return "cannot connect"
	case ProxyStatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error returns the sentinel matching s, or nil for ProxyStatusOK.
func (s ProxyStatus) Error() error {
	switch s {
	case ProxyStatusOK:
		return nil
	case ProxyStatusWrongType:
		return ErrProxyNotSOCKS5
	case ProxyStatusCannotConnect:
		return ErrProxyCannotConnect
	case ProxyStatusTimeout:
		return ErrProxyTimeout
	default:
		return errors.New("unknown proxy status")
	}
}
