package flexismart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Client represents a UDP session with a FlexiSmart gateway.
type Client struct {
	conn           net.Conn
	addr           string
	requestTimeout time.Duration
	retransmit     time.Duration
	logger         *slog.Logger
	mu             sync.Mutex
	pending        map[uint8]chan *Packet
	pendingMu      sync.Mutex
	nextMsgID      uint8
	closeCh        chan struct{}
	isClosed       bool
}

// NewClient creates a new client bound to the gateway at host.
// The context is used for address resolution.
// Options can be provided to configure the client behavior.
func NewClient(ctx context.Context, host string, opts ...ClientOption) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.connectTimeout)
		defer cancel()
	}

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", cfg.port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:           conn,
		addr:           addr,
		requestTimeout: cfg.requestTimeout,
		retransmit:     cfg.retransmit,
		logger:         cfg.logger,
		pending:        make(map[uint8]chan *Packet),
		closeCh:        make(chan struct{}),
	}

	if c.logger != nil {
		c.logger.Debug("bound to gateway", "addr", addr)
	}

	go c.readLoop()

	return c, nil
}

// Addr returns the gateway address the client talks to.
func (c *Client) Addr() string {
	return c.addr
}

// Close closes the socket. Pending requests fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed {
		return nil
	}
	c.isClosed = true
	close(c.closeCh)
	if c.logger != nil {
		c.logger.Debug("connection closed", "addr", c.addr)
	}
	return c.conn.Close()
}

func (c *Client) closed() bool {
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}

func (c *Client) readLoop() {
	buf := make([]byte, headerLen+MaxDataLen+crcLen)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			if c.closed() {
				return
			}
			// A connected UDP socket reports ICMP errors (port unreachable)
			// on read; the gateway may come back, so keep listening.
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if c.logger != nil {
				c.logger.Debug("read failed", "error", err)
			}
			continue
		}

		packet, err := Decode(buf[:n])
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("failed to decode packet", "error", err)
			}
			continue
		}

		if c.logger != nil {
			c.logger.Debug("packet received", "msgID", packet.MsgID, "command", packet.Command, "dataLen", len(packet.Data))
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[packet.MsgID]
		if ok {
			ch <- packet
			delete(c.pending, packet.MsgID)
		}
		c.pendingMu.Unlock()
	}
}

// allocateID registers ch under the next message id that is not waiting for
// a response. Ids wrap at 256.
func (c *Client) allocateID(ch chan *Packet) (uint8, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed {
		return 0, ErrClosed
	}
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	for range 256 {
		id := c.nextMsgID
		c.nextMsgID++
		if _, busy := c.pending[id]; !busy {
			c.pending[id] = ch
			return id, nil
		}
	}
	return 0, ErrTooManyRequests
}

// sendRequest sends a command and returns the response payload with the
// status byte stripped.
func (c *Client) sendRequest(ctx context.Context, command uint8, data []byte) ([]byte, error) {
	respCh := make(chan *Packet, 1)
	msgID, err := c.allocateID(respCh)
	if err != nil {
		return nil, err
	}

	p := NewPacket(msgID, command, data)
	encoded := p.Encode()

	forget := func() {
		c.pendingMu.Lock()
		delete(c.pending, msgID)
		c.pendingMu.Unlock()
	}

	if _, err := c.conn.Write(encoded); err != nil {
		forget()
		if c.logger != nil {
			c.logger.Error("failed to send request", "msgID", msgID, "error", err)
		}
		return nil, fmt.Errorf("send command 0x%02X: %w", command, err)
	}

	if c.logger != nil {
		c.logger.Debug("request sent", "msgID", msgID, "command", command, "dataLen", len(data))
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	// A nil channel never fires, so requests are sent once without a
	// retransmit interval.
	var resend <-chan time.Time
	if c.retransmit > 0 {
		ticker := time.NewTicker(c.retransmit)
		defer ticker.Stop()
		resend = ticker.C
	}

	for {
		select {
		case resp := <-respCh:
			if resp.Command != command {
				return nil, fmt.Errorf("%w: command 0x%02X answered with 0x%02X", ErrInvalidResponse, command, resp.Command)
			}
			return checkStatus(resp.Data)
		case <-resend:
			if c.logger != nil {
				c.logger.Debug("request retransmitted", "msgID", msgID, "command", command)
			}
			_, _ = c.conn.Write(encoded)
		case <-c.closeCh:
			forget()
			return nil, ErrClosed
		case <-ctx.Done():
			forget()
			if c.logger != nil {
				c.logger.Warn("request timeout", "msgID", msgID, "command", command)
			}
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: command 0x%02X: %w", ErrRequestTimeout, command, ctx.Err())
			}
			return nil, fmt.Errorf("request canceled: %w", ctx.Err())
		}
	}
}

// Ping checks that the gateway answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.sendRequest(ctx, CmdPing, nil)
	return err
}

// GetGatewayData requests gateway metadata and the zone list.
func (c *Client) GetGatewayData(ctx context.Context) (*GatewayData, error) {
	resp, err := c.sendRequest(ctx, CmdGatewayData, nil)
	if err != nil {
		return nil, err
	}
	return UnmarshalGatewayData(resp)
}

// GetModuleCount requests the number of modules paired in a zone.
func (c *Client) GetModuleCount(ctx context.Context, zone int) (int, error) {
	if zone < 0 || zone > 255 {
		return 0, fmt.Errorf("%w: zone %d out of range", ErrInvalidRequest, zone)
	}
	resp, err := c.sendRequest(ctx, CmdModuleCount, []byte{uint8(zone)})
	if err != nil {
		return 0, err
	}
	return UnmarshalModuleCount(resp)
}

// GetModuleData requests the telemetry of one module. With extended set the
// gateway also returns anti-freeze and holiday settings.
func (c *Client) GetModuleData(ctx context.Context, zone, module int, extended bool) (*ModuleData, error) {
	payload, err := MarshalModuleDataRequest(zone, module, extended)
	if err != nil {
		return nil, err
	}
	resp, err := c.sendRequest(ctx, CmdModuleData, payload)
	if err != nil {
		return nil, err
	}
	m, err := UnmarshalModuleData(resp)
	if err != nil {
		return nil, err
	}
	if m.Zone != zone || m.Module != module {
		return nil, fmt.Errorf("%w: asked for zone %d module %d, got zone %d module %d",
			ErrInvalidResponse, zone, module, m.Zone, m.Module)
	}
	return m, nil
}

// SetModuleTemperature sets the target temperature of a module.
func (c *Client) SetModuleTemperature(ctx context.Context, zone, module int, celsius float64) error {
	buf, err := MarshalModuleAddress(zone, module)
	if err != nil {
		return err
	}
	if buf, err = MarshalTemperature(buf, celsius); err != nil {
		return err
	}
	_, err = c.sendRequest(ctx, CmdSetTemperature, buf)
	return err
}

// SetModuleBoost starts a boost for the given number of minutes. Zero
// minutes cancels a running boost.
func (c *Client) SetModuleBoost(ctx context.Context, zone, module, minutes int) error {
	if minutes < 0 || minutes > 255 {
		return fmt.Errorf("%w: boost of %d minutes", ErrInvalidRequest, minutes)
	}
	buf, err := MarshalModuleAddress(zone, module)
	if err != nil {
		return err
	}
	_, err = c.sendRequest(ctx, CmdSetBoost, append(buf, uint8(minutes)))
	return err
}

// SetModuleHolidayMode enables holiday mode until the given time. The
// module returns to temperature when holiday mode ends.
func (c *Client) SetModuleHolidayMode(ctx context.Context, zone, module int, until time.Time, temperature float64) error {
	buf, err := MarshalHolidayMode(zone, module, until, temperature)
	if err != nil {
		return err
	}
	_, err = c.sendRequest(ctx, CmdSetHolidayMode, buf)
	return err
}

// DisableModuleHolidayMode ends holiday mode on a module.
func (c *Client) DisableModuleHolidayMode(ctx context.Context, zone, module int) error {
	buf, err := MarshalModuleAddress(zone, module)
	if err != nil {
		return err
	}
	_, err = c.sendRequest(ctx, CmdDisableHolidayMode, buf)
	return err
}

// EnableModuleWindowOpenDetection turns window open detection on.
func (c *Client) EnableModuleWindowOpenDetection(ctx context.Context, zone, module int) error {
	return c.setWindowOpenDetection(ctx, zone, module, true)
}

// DisableModuleWindowOpenDetection turns window open detection off.
func (c *Client) DisableModuleWindowOpenDetection(ctx context.Context, zone, module int) error {
	return c.setWindowOpenDetection(ctx, zone, module, false)
}

func (c *Client) setWindowOpenDetection(ctx context.Context, zone, module int, enabled bool) error {
	buf, err := MarshalModuleAddress(zone, module)
	if err != nil {
		return err
	}
	var v uint8
	if enabled {
		v = 1
	}
	_, err = c.sendRequest(ctx, CmdSetWindowOpenDetection, append(buf, v))
	return err
}

// SetModuleAntiFreezeTemperature sets the frost protection temperature.
func (c *Client) SetModuleAntiFreezeTemperature(ctx context.Context, zone, module int, celsius float64) error {
	buf, err := MarshalModuleAddress(zone, module)
	if err != nil {
		return err
	}
	if buf, err = MarshalTemperature(buf, celsius); err != nil {
		return err
	}
	_, err = c.sendRequest(ctx, CmdSetAntiFreeze, buf)
	return err
}

// UpdateDateTime sets the gateway clock to now.
func (c *Client) UpdateDateTime(ctx context.Context, now time.Time) error {
	_, err := c.sendRequest(ctx, CmdSetDateTime, MarshalDateTime(now))
	return err
}
