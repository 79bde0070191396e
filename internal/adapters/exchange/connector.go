package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ohlcvflow/internal/core/domain"
	"ohlcvflow/internal/core/port"
)

var _ port.ExchangePort = (*Connector)(nil)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultReadTimeout      = 90 * time.Second
	outputBuffer            = 100
)

// Connector owns one exchange stream: its connection, its optional token and
// its reconnect timer. Nothing is shared between connectors.
type Connector struct {
	protocol    Protocol
	dialer      Dialer
	auth        Authenticator
	authPolicy  AuthPolicy
	tokenTTL    time.Duration
	reconnect   ReconnectPolicy
	readTimeout time.Duration
	fixedRead   bool
	observer    func(domain.ConnectorState)
	logger      *slog.Logger

	mu      sync.RWMutex
	state   domain.ConnectorState
	token   *Token
	running bool
	cancel  context.CancelFunc
	outChan chan domain.Record
	wg      sync.WaitGroup
}

type Option func(*Connector)

func WithDialer(d Dialer) Option {
	return func(c *Connector) { c.dialer = d }
}

// WithAuthenticator makes the connector acquire a token before connecting.
// A token older than ttl is refreshed before the next attempt; ttl <= 0
// keeps a token until the process stops.
func WithAuthenticator(a Authenticator, policy AuthPolicy, ttl time.Duration) Option {
	return func(c *Connector) {
		c.auth = a
		c.authPolicy = policy
		c.tokenTTL = ttl
	}
}

func WithReconnectPolicy(p ReconnectPolicy) Option {
	return func(c *Connector) { c.reconnect = p }
}

// WithReadTimeout overrides the read timeout, including the one an
// IdleTimeout protocol asks for. d <= 0 disables it.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Connector) {
		c.readTimeout = d
		c.fixedRead = true
	}
}

// WithObserver registers a callback invoked with every state change.
func WithObserver(fn func(domain.ConnectorState)) Option {
	return func(c *Connector) { c.observer = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Connector) { c.logger = logger }
}

func NewConnector(protocol Protocol, opts ...Option) *Connector {
	c := &Connector{
		protocol:    protocol,
		dialer:      NewWSDialer(defaultHandshakeTimeout),
		reconnect:   DefaultReconnectPolicy(),
		readTimeout: defaultReadTimeout,
		logger:      slog.Default(),
		state: domain.ConnectorState{
			Exchange: protocol.Exchange(),
			Phase:    domain.PhaseIdle,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if it, ok := protocol.(IdleTimeout); ok && !c.fixedRead {
		c.readTimeout = it.IdleTimeout()
	}
	c.logger = c.logger.With(slog.String("exchange", protocol.Exchange().String()))

	return c
}

func (c *Connector) Exchange() domain.Exchange {
	return c.protocol.Exchange()
}

// Start runs the connector until ctx is done or Stop is called. The returned
// channel carries normalized records and is closed when the connector returns
// to idle (or is disabled). A disabled connector stays disabled: Start hands
// back a closed channel.
func (c *Connector) Start(ctx context.Context) <-chan domain.Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return c.outChan
	}
	if c.state.Phase == domain.PhaseDisabled {
		c.logger.Warn("refusing to start", slog.Any("error", domain.ErrConnectorDisabled))
		closed := make(chan domain.Record)
		close(closed)
		return closed
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.outChan = make(chan domain.Record, outputBuffer)
	c.running = true

	c.wg.Add(1)
	go c.run(runCtx, c.outChan)

	return c.outChan
}

// Stop closes the transport, cancels any pending reconnect and waits until
// the connector is idle.
func (c *Connector) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

func (c *Connector) State() domain.ConnectorState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Connector) run(ctx context.Context, out chan<- domain.Record) {
	defer c.wg.Done()
	defer close(out)
	defer c.finish()

	for {
		if err := c.authenticate(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, domain.ErrAuthExhausted) && c.authPolicy == AuthDisable {
				c.disable(err)
				return
			}
			c.fail(err)
		} else {
			err := c.stream(ctx, out)
			if ctx.Err() != nil {
				return
			}
			c.fail(err)
		}

		if err := c.reconnect.Wait(ctx); err != nil {
			return
		}
	}
}

func (c *Connector) authenticate(ctx context.Context) error {
	if c.auth == nil {
		return nil
	}

	c.mu.RLock()
	expired := c.token.Expired(c.tokenTTL, time.Now())
	c.mu.RUnlock()
	if !expired {
		return nil
	}

	c.setPhase(domain.PhaseAuthenticating)

	token, err := c.auth.Authenticate(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	return nil
}

func (c *Connector) stream(ctx context.Context, out chan<- domain.Record) error {
	c.setPhase(domain.PhaseConnecting)

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	endpoint, err := c.protocol.Endpoint(token)
	if err != nil {
		return fmt.Errorf("%w: endpoint: %v", domain.ErrTransportFailure, err)
	}

	conn, err := c.dialer.Dial(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("%w: dial: %v", domain.ErrTransportFailure, err)
	}

	done := make(chan struct{})
	defer func() {
		close(done)
		_ = conn.Close()
	}()
	// ReadMessage does not observe ctx; closing the conn unblocks it.
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	sess := &session{conn: conn}

	c.setPhase(domain.PhaseSubscribing)
	for _, req := range c.protocol.Subscriptions() {
		if err := sess.write(req); err != nil {
			return fmt.Errorf("%w: subscribe: %v", domain.ErrTransportFailure, err)
		}
	}

	if ka, ok := c.protocol.(Keepalive); ok {
		interval := ka.PingInterval()
		if token != nil && token.PingInterval > 0 {
			interval = token.PingInterval
		}
		go sess.keepalive(done, interval, ka.PingMessage)
	}

	streaming := false
	for {
		if c.readTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("%w: read: %v", domain.ErrTransportFailure, err)
		}

		if !streaming {
			streaming = true
			c.setPhase(domain.PhaseStreaming)
		}

		for _, reply := range c.protocol.Handshake(raw) {
			if err := sess.write(reply); err != nil {
				return fmt.Errorf("%w: handshake: %v", domain.ErrTransportFailure, err)
			}
		}

		records, err := c.protocol.Normalize(raw)
		if err != nil {
			c.logger.Warn("skipping malformed message", slog.Any("error", err))
			continue
		}

		for _, record := range records {
			select {
			case out <- record:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (c *Connector) setPhase(phase domain.Phase) {
	c.mu.Lock()
	c.state.Phase = phase
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("connector state changed", slog.String("phase", string(phase)))
	c.notify(snap)
}

// fail moves to closing and counts the reconnect the caller schedules next.
func (c *Connector) fail(err error) {
	c.mu.Lock()
	c.state.Phase = domain.PhaseClosing
	c.state.Retries++
	c.state.LastError = err.Error()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Error("exchange connection failed",
		slog.Int("retries", snap.Retries),
		slog.Duration("retry_in", c.reconnect.Delay),
		slog.Any("error", err))
	c.notify(snap)
}

func (c *Connector) disable(err error) {
	c.mu.Lock()
	c.state.Phase = domain.PhaseDisabled
	c.state.LastError = fmt.Errorf("%w: %w", domain.ErrConnectorDisabled, err).Error()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Error("connector disabled", slog.Any("error", err))
	c.notify(snap)
}

func (c *Connector) finish() {
	c.mu.Lock()
	c.running = false
	if c.state.Phase == domain.PhaseDisabled {
		c.mu.Unlock()
		return
	}
	c.state.Phase = domain.PhaseIdle
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("connector stopped")
	c.notify(snap)
}

func (c *Connector) notify(snap domain.ConnectorState) {
	if c.observer != nil {
		c.observer(snap)
	}
}

func (c *Connector) snapshotLocked() domain.ConnectorState {
	snap := c.state
	if c.token != nil {
		at := c.token.AcquiredAt
		snap.TokenAcquiredAt = &at
	}
	return snap
}

// session serializes writes; gorilla connections allow one writer at a time.
type session struct {
	mu   sync.Mutex
	conn Conn
}

func (s *session) write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *session) keepalive(done <-chan struct{}, every time.Duration, msg func() any) {
	if every <= 0 {
		return
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := s.write(msg()); err != nil {
				return
			}
		}
	}
}
