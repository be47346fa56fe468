package mower

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/enicky/automower-ble/internal/logging"
	"github.com/enicky/automower-ble/internal/protocol"
	"github.com/enicky/automower-ble/internal/transport"
	"go.uber.org/zap"
)

const (
	defaultTimeout         = 5 * time.Second
	defaultRetries         = 3
	defaultInitialInterval = 250 * time.Millisecond
	defaultMaxInterval     = 2 * time.Second
)

// ErrUnknownCommand is returned when no request command id is known for a
// response kind. Supply one with WithCommands.
var ErrUnknownCommand = errors.New("no request command id known")

// ErrPinRejected is returned by Login when the controller still reports the
// operator as logged out after the PIN was sent
var ErrPinRejected = errors.New("operator PIN rejected")

// Observer is told the outcome of every decoded response. err is nil on
// success.
type Observer func(kind protocol.ResponseKind, err error)

// Client is a session with one mower. It owns the transport and allows a
// single outstanding request at a time.
type Client struct {
	transport transport.Transport

	mu       sync.Mutex
	decoder  protocol.Decoder
	commands map[protocol.ResponseKind]protocol.CommandID
	model    *protocol.MowerModel

	timeout         time.Duration
	retries         int
	initialInterval time.Duration
	observer        Observer
}

// Option configures a Client
type Option func(*Client)

// WithChannel reuses a channel id instead of generating one
func WithChannel(id protocol.ChannelID) Option {
	return func(c *Client) { c.decoder.Channel = id }
}

// WithBrand sets the brand used to decode MowerState until Model is called
func WithBrand(b protocol.Brand) Option {
	return func(c *Client) { c.decoder.Brand = b }
}

// WithTimeout bounds each request/response exchange
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRetries sets how often a transient failure is retried
func WithRetries(n int) Option {
	return func(c *Client) { c.retries = n }
}

// WithCommands adds or replaces request command ids
func WithCommands(cmds map[protocol.ResponseKind]protocol.CommandID) Option {
	return func(c *Client) {
		for k, v := range cmds {
			c.commands[k] = v
		}
	}
}

// WithObserver registers a hook called after every decode
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient creates a session over t. A random channel id is generated
// unless WithChannel is given.
func NewClient(t transport.Transport, opts ...Option) (*Client, error) {
	c := &Client{
		transport:       t,
		commands:        make(map[protocol.ResponseKind]protocol.CommandID),
		timeout:         defaultTimeout,
		retries:         defaultRetries,
		initialInterval: defaultInitialInterval,
	}
	for _, k := range protocol.ResponseKinds() {
		if cmd, ok := protocol.KnownCommand(k); ok {
			c.commands[k] = cmd
		}
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.decoder.Channel == 0 {
		id, err := protocol.GenerateChannelID()
		if err != nil {
			return nil, err
		}
		c.decoder.Channel = id
	}
	return c, nil
}

// Connect opens the transport
func (c *Client) Connect(ctx context.Context) error {
	if err := c.transport.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.transport, err)
	}
	logging.Info("Mower session started",
		zap.String("endpoint", c.transport.String()),
		zap.Stringer("channel", c.decoder.Channel),
	)
	return nil
}

// Close closes the transport
func (c *Client) Close() error {
	return c.transport.Disconnect()
}

// Channel returns the session's channel id
func (c *Client) Channel() protocol.ChannelID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.decoder.Channel
}

// Brand returns the brand used to decode MowerState
func (c *Client) Brand() protocol.Brand {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.decoder.Brand
}

// Command returns the request command id used for kind
func (c *Client) Command(kind protocol.ResponseKind) (protocol.CommandID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmd, ok := c.commands[kind]
	return cmd, ok
}

// Query sends the request for kind and decodes the response. Transport
// errors, checksum mismatches and short frames are retried with exponential
// backoff; any other decode error is returned at once.
func (c *Client) Query(ctx context.Context, kind protocol.ResponseKind, payload []byte) (protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cmd, ok := c.commands[kind]
	if !ok {
		return nil, fmt.Errorf("%s: %w", kind, ErrUnknownCommand)
	}
	req, err := protocol.BuildRequest(c.decoder.Channel, cmd, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", kind, err)
	}

	var resp protocol.Response
	attempt := 0
	operation := func() error {
		attempt++
		r, err := c.exchange(ctx, kind, req)
		if err == nil {
			resp = r
			return nil
		}
		if ctx.Err() != nil || !retryable(err) {
			return backoff.Permanent(err)
		}
		if !isDecodeError(err) {
			c.reconnect(ctx)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logging.Warn("Retrying request",
			zap.Stringer("kind", kind),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(operation, c.newBackOff(ctx), notify); err != nil {
		return nil, err
	}
	return resp, nil
}

// exchange performs one write/read/decode round trip
func (c *Client) exchange(ctx context.Context, kind protocol.ResponseKind, req []byte) (protocol.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	logging.LogFrame("sent", kind.String(), req)
	if err := c.transport.Write(ctx, req); err != nil {
		return nil, err
	}

	buf, err := c.transport.Read(ctx)
	if err != nil {
		return nil, err
	}
	logging.LogFrame("received", kind.String(), buf)

	resp, err := c.decoder.Decode(kind, buf)
	if c.observer != nil {
		c.observer(kind, err)
	}
	if err != nil {
		logging.Debug("Decode failed", zap.Stringer("kind", kind), zap.Error(err))
		return nil, err
	}
	return resp, nil
}

func (c *Client) reconnect(ctx context.Context) {
	_ = c.transport.Disconnect()
	if err := c.transport.Connect(ctx); err != nil {
		logging.Warn("Reconnect failed", zap.String("endpoint", c.transport.String()), zap.Error(err))
	}
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxInterval = defaultMaxInterval
	b.MaxElapsedTime = 0
	retries := c.retries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

func isDecodeError(err error) bool {
	_, ok := protocol.ErrorTypeOf(err)
	return ok
}

// retryable reports whether err may go away on a second attempt
func retryable(err error) bool {
	if t, ok := protocol.ErrorTypeOf(err); ok {
		return t == protocol.ErrTypeChecksumMismatch || t == protocol.ErrTypeTooShort
	}
	return !errors.Is(err, ErrUnknownCommand)
}

func queryAs[T protocol.Response](ctx context.Context, c *Client, kind protocol.ResponseKind, payload []byte) (T, error) {
	var zero T
	resp, err := c.Query(ctx, kind, payload)
	if err != nil {
		return zero, err
	}
	typed, ok := resp.(T)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected response type %T", kind, resp)
	}
	return typed, nil
}

// Model identifies the mower and switches the session to its brand's state
// numbering
func (c *Client) Model(ctx context.Context) (protocol.MowerModel, error) {
	r, err := queryAs[*protocol.ModelResponse](ctx, c, protocol.KindDeviceType, nil)
	if err != nil {
		return protocol.MowerModel{}, err
	}
	c.mu.Lock()
	c.decoder.Brand = r.Model.Brand()
	m := r.Model
	c.model = &m
	c.mu.Unlock()
	return r.Model, nil
}

// BatteryLevel returns the battery percentage
func (c *Client) BatteryLevel(ctx context.Context) (uint8, error) {
	r, err := queryAs[*protocol.NumberResponse](ctx, c, protocol.KindBatteryLevel, nil)
	if err != nil {
		return 0, err
	}
	return uint8(r.Value), nil
}

// IsCharging reports whether the mower is charging
func (c *Client) IsCharging(ctx context.Context) (bool, error) {
	return c.flag(ctx, protocol.KindIsCharging)
}

// NextStartTime returns the next scheduled start, or the zero time if none
func (c *Client) NextStartTime(ctx context.Context) (time.Time, error) {
	r, err := queryAs[*protocol.TimeResponse](ctx, c, protocol.KindStartTime, nil)
	if err != nil {
		return time.Time{}, err
	}
	return r.Time, nil
}

// State returns the mower state, decoded with the session's brand
func (c *Client) State(ctx context.Context) (protocol.MowerState, error) {
	name, err := c.name(ctx, protocol.KindMowerState)
	return protocol.MowerState(name), err
}

// Activity returns what the mower is doing
func (c *Client) Activity(ctx context.Context) (protocol.MowerActivity, error) {
	name, err := c.name(ctx, protocol.KindMowerActivity)
	return protocol.MowerActivity(name), err
}

// Mode returns the mode of operation
func (c *Client) Mode(ctx context.Context) (protocol.Mode, error) {
	name, err := c.name(ctx, protocol.KindMode)
	return protocol.Mode(name), err
}

// RestrictionReason returns why mowing is restricted
func (c *Client) RestrictionReason(ctx context.Context) (protocol.RestrictionReason, error) {
	name, err := c.name(ctx, protocol.KindRestrictionReason)
	return protocol.RestrictionReason(name), err
}

// SerialNumber returns the controller serial number
func (c *Client) SerialNumber(ctx context.Context) (uint32, error) {
	r, err := queryAs[*protocol.NumberResponse](ctx, c, protocol.KindSerialNumber, nil)
	if err != nil {
		return 0, err
	}
	return r.Value, nil
}

// NumberOfTasks returns how many schedule entries the mower holds
func (c *Client) NumberOfTasks(ctx context.Context) (uint32, error) {
	r, err := queryAs[*protocol.NumberResponse](ctx, c, protocol.KindNumberOfTasks, nil)
	if err != nil {
		return 0, err
	}
	return r.Value, nil
}

// Task returns the schedule entry at index. The request carries the index
// as a single byte.
func (c *Client) Task(ctx context.Context, index uint8) (protocol.TaskInformation, error) {
	r, err := queryAs[*protocol.TaskResponse](ctx, c, protocol.KindTaskInfo, []byte{index})
	if err != nil {
		return protocol.TaskInformation{}, err
	}
	return r.Task, nil
}

// Tasks returns every schedule entry
func (c *Client) Tasks(ctx context.Context) ([]protocol.TaskInformation, error) {
	n, err := c.NumberOfTasks(ctx)
	if err != nil {
		return nil, err
	}
	tasks := make([]protocol.TaskInformation, 0, n)
	for i := uint32(0); i < n && i <= 0xFF; i++ {
		task, err := c.Task(ctx, uint8(i))
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// Keepalive keeps the BLE session from timing out
func (c *Client) Keepalive(ctx context.Context) error {
	_, err := c.Query(ctx, protocol.KindKeepalive, nil)
	return err
}

// Park sends the mower back to its charging station
func (c *Client) Park(ctx context.Context) error {
	_, err := c.Query(ctx, protocol.KindPark, nil)
	return err
}

// OverrideMow makes the mower mow for d regardless of its schedule. The
// request carries the duration in seconds (little-endian uint32).
func (c *Client) OverrideMow(ctx context.Context, d time.Duration) error {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, uint32(d/time.Second))
	_, err := c.Query(ctx, protocol.KindOverrideMow, payload)
	return err
}

// StartupSequenceRequired reports whether the controller wants the startup
// sequence
func (c *Client) StartupSequenceRequired(ctx context.Context) (bool, error) {
	return c.flag(ctx, protocol.KindStartupSequenceRequired)
}

// OperatorLoggedIn reports whether the operator PIN has been accepted
func (c *Client) OperatorLoggedIn(ctx context.Context) (bool, error) {
	return c.flag(ctx, protocol.KindOperatorLoggedIn)
}

// EnterOperatorPin sends the operator PIN as a little-endian uint16. The
// acknowledgement does not say whether the PIN was accepted.
func (c *Client) EnterOperatorPin(ctx context.Context, pin uint16) error {
	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, pin)
	_, err := c.Query(ctx, protocol.KindOperatorPin, payload)
	return err
}

// Login sends pin unless the operator is already logged in, then checks that
// the controller accepted it. When no command id is known for the logged in
// check the PIN is sent and assumed accepted.
func (c *Client) Login(ctx context.Context, pin uint16) error {
	loggedIn, err := c.OperatorLoggedIn(ctx)
	switch {
	case err == nil && loggedIn:
		return nil
	case err != nil && !errors.Is(err, ErrUnknownCommand):
		return err
	}
	verify := err == nil

	if err := c.EnterOperatorPin(ctx, pin); err != nil {
		return fmt.Errorf("failed to send operator PIN: %w", err)
	}
	if !verify {
		logging.Debug("Operator PIN sent without verification", zap.Stringer("kind", protocol.KindOperatorLoggedIn))
		return nil
	}

	loggedIn, err = c.OperatorLoggedIn(ctx)
	if err != nil {
		return err
	}
	if !loggedIn {
		return ErrPinRejected
	}
	logging.Info("Operator logged in", zap.String("endpoint", c.transport.String()))
	return nil
}

// SetMode changes the mode of operation. The request carries the mode code
// as a single byte.
func (c *Client) SetMode(ctx context.Context, mode protocol.Mode) error {
	code, ok := protocol.ModeCode(mode)
	if !ok {
		return fmt.Errorf("unknown mode %q", mode)
	}
	_, err := c.Query(ctx, protocol.KindSetMode, []byte{code})
	return err
}

// StartTrigger makes the controller act on the preceding park or override
// command
func (c *Client) StartTrigger(ctx context.Context) error {
	_, err := c.Query(ctx, protocol.KindStartTrigger, nil)
	return err
}

// Manual runs one operator command: log in with pin, switch to manual mode,
// send the command and trigger it.
func (c *Client) Manual(ctx context.Context, pin uint16, send func(context.Context) error) error {
	if err := c.Login(ctx, pin); err != nil {
		return err
	}
	if err := c.SetMode(ctx, protocol.ModeManual); err != nil {
		return fmt.Errorf("failed to switch to manual mode: %w", err)
	}
	if err := send(ctx); err != nil {
		return err
	}
	if err := c.StartTrigger(ctx); err != nil {
		return fmt.Errorf("start trigger failed: %w", err)
	}
	return nil
}

func (c *Client) flag(ctx context.Context, kind protocol.ResponseKind) (bool, error) {
	r, err := queryAs[*protocol.FlagResponse](ctx, c, kind, nil)
	if err != nil {
		return false, err
	}
	return r.Value, nil
}

func (c *Client) name(ctx context.Context, kind protocol.ResponseKind) (string, error) {
	r, err := queryAs[*protocol.NameResponse](ctx, c, kind, nil)
	if err != nil {
		return "", err
	}
	return r.Name, nil
}
