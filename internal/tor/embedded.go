package tor

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultStartupTimeout is how long Start waits for Tor to bootstrap.
const DefaultStartupTimeout = 3 * time.Minute

// EmbeddedTor runs a private Tor daemon through tornago. Bootstrapping takes
// one to three minutes.
type EmbeddedTor struct {
	process        *tornago.TorProcess
	socksAddr      string
	controlAddr    string
	startupTimeout time.Duration
}

// EmbeddedTorOption configures an EmbeddedTor.
type EmbeddedTorOption func(*EmbeddedTor)

// WithStartupTimeout sets the maximum time to wait for Tor to bootstrap.
func WithStartupTimeout(timeout time.Duration) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		e.startupTimeout = timeout
	}
}

// NewEmbeddedTor creates an unstarted daemon manager.
func NewEmbeddedTor(opts ...EmbeddedTorOption) *EmbeddedTor {
	e := &EmbeddedTor{startupTimeout: DefaultStartupTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the daemon on OS-assigned ports and blocks until it has
// bootstrapped. If ctx is done by then, the daemon is stopped again and the
// context error returned.
func (e *EmbeddedTor) Start(ctx context.Context) error {
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(e.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return fmt.Errorf("failed to start embedded Tor daemon: %w", err)
	}

	if err := ctx.Err(); err != nil {
		_ = process.Stop() //nolint:errcheck
		return err
	}

	e.process = process
	e.socksAddr = process.SocksAddr()
	e.controlAddr = process.ControlAddr()
	return nil
}

// Stop shuts the daemon down. It is a no-op when nothing is running, so it
// satisfies io.Closer-style cleanup chains.
func (e *EmbeddedTor) Stop() error {
	if e.process == nil {
		return nil
	}
	err := e.process.Stop()
	e.process = nil
	return err
}

// Close calls Stop.
func (e *EmbeddedTor) Close() error {
	return e.Stop()
}

// SocksAddr returns the daemon's SOCKS5 address, empty before Start.
func (e *EmbeddedTor) SocksAddr() string {
	return e.socksAddr
}

// ControlAddr returns the daemon's control port address, empty before Start.
func (e *EmbeddedTor) ControlAddr() string {
	return e.controlAddr
}

// IsRunning reports whether Start succeeded and Stop has not been called.
func (e *EmbeddedTor) IsRunning() bool {
	return e.process != nil
}

// NewClient returns a Client bound to the daemon's SOCKS port.
func (e *EmbeddedTor) NewClient(timeout time.Duration) (*Client, error) {
	if !e.IsRunning() {
		return nil, ErrNotRunning
	}
	return NewClient(e.socksAddr, timeout)
}
