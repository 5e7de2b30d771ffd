package tor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// checkProxyTimeout bounds CheckConnection. It only probes the local proxy.
const checkProxyTimeout = 2 * time.Second

// maxRedirects matches the fetcher's default client.
const maxRedirects = 10

// SOCKS5 protocol constants
const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5AuthNoAccept = 0xFF
	socks5CmdConnect   = 0x01
	socks5AddrTypeName = 0x03

	// socks5ProbeHost is the CONNECT target of the probe. Only the proxy's
	// reply matters; the connection itself may fail.
	socks5ProbeHost = "example.com"
	socks5ProbePort = 80
)

// Client dials through a SOCKS5 proxy.
type Client struct {
	proxyAddress string
	dialer       proxy.Dialer
	timeout      time.Duration
}

// NewClient creates a Client for proxyAddress ("host:port"). timeout is the
// request timeout of HTTP clients built from it. The proxy is not contacted;
// call CheckConnection for that.
func NewClient(proxyAddress string, timeout time.Duration) (*Client, error) {
	if !isValidProxyAddress(proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}

	dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	return &Client{
		proxyAddress: proxyAddress,
		dialer:       dialer,
		timeout:      timeout,
	}, nil
}

func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" || port == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// ProxyAddress returns the configured proxy address.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// CheckConnection performs a SOCKS5 greeting and a CONNECT request against
// the proxy. Any well-formed CONNECT reply, including a failure code, counts
// as ProxyStatusOK.
func (c *Client) CheckConnection(ctx context.Context) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddress)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return ProxyStatusCannotConnect
	}

	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	greeting := make([]byte, 2)
	if _, err := io.ReadFull(conn, greeting); err != nil {
		return readFailure(err)
	}
	if greeting[0] != socks5Version || greeting[1] == socks5AuthNoAccept || greeting[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}

	req := []byte{socks5Version, socks5CmdConnect, 0x00, socks5AddrTypeName, byte(len(socks5ProbeHost))}
	req = append(req, socks5ProbeHost...)
	req = append(req, byte(socks5ProbePort>>8), byte(socks5ProbePort&0xFF))
	if _, err := conn.Write(req); err != nil {
		return ProxyStatusCannotConnect
	}

	// version, reply, reserved, address type
	reply := make([]byte, 4)
	if _, err := io.ReadFull(conn, reply); err != nil {
		return readFailure(err)
	}
	if reply[0] != socks5Version {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

func readFailure(err error) ProxyStatus {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ProxyStatusTimeout
	}
	return ProxyStatusWrongType
}

// DialContext connects to address through the proxy.
func (c *Client) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := c.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case r := <-resultCh:
		return r.conn, r.err
	case <-ctx.Done():
		go func() {
			if r := <-resultCh; r.conn != nil {
				_ = r.conn.Close() //nolint:errcheck
			}
		}()
		return nil, ctx.Err()
	}
}

// NewHTTPClient returns an HTTP client whose connections all go through the
// proxy. Certificates are verified as usual.
func (c *Client) NewHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext:         c.DialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}
