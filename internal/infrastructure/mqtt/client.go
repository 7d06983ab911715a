package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/compere/kpm-bridge/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for one broker connection.
//
// It provides a blocking initial connect with exponential backoff,
// message publishing, subscription handling, and re-subscription after
// the transport's own reconnect.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Message handlers for one connection are invoked one at a time, in
//     arrival order, from that connection's delivery goroutine.
type Client struct {
	client    pahomqtt.Client
	brokerURL string
	reconnect config.ReconnectConfig

	// subscriptions tracks active subscriptions for re-subscription on reconnect.
	subscriptions map[string]subscription
	subMu         sync.RWMutex

	// connected tracks current connection state.
	connected bool
	connMu    sync.RWMutex

	// Callbacks for connection events (optional, set via SetOnConnect/SetOnDisconnect).
	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	// logger for retry/handler logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// subscription holds subscription details for re-subscription on reconnect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
//
// Handlers for a single connection run serialized on that connection's
// delivery goroutine; a blocking handler delays later messages on the
// same connection but not on other connections.
//
// A returned error is logged and otherwise ignored; it does not affect
// message acknowledgement.
type MessageHandler func(topic string, payload []byte) error

// New creates a client for the given broker. The client is not
// connected until Connect is called.
func New(broker config.BrokerConfig, reconnect config.ReconnectConfig) *Client {
	c := &Client{
		brokerURL:     brokerURL(broker),
		reconnect:     reconnect,
		subscriptions: make(map[string]subscription),
	}

	opts := buildClientOptions(broker)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	c.client = pahomqtt.NewClient(opts)
	return c
}

// Connect blocks until a transport-level connection succeeds, retrying
// indefinitely with exponential backoff (initial delay doubling up to
// the configured maximum). It returns nil only on success; the sole
// error path is context cancellation.
//
// Reconnection after an established connection drops is handled by the
// transport's auto-reconnect; state changes surface through the
// SetOnConnect/SetOnDisconnect callbacks.
func (c *Client) Connect(ctx context.Context) error {
	delay := time.Duration(c.reconnect.InitialDelay) * time.Second
	maxDelay := time.Duration(c.reconnect.MaxDelay) * time.Second

	for {
		token := c.client.Connect()
		if token.WaitTimeout(defaultConnectTimeout) && token.Error() == nil {
			// The OnConnectHandler callback runs asynchronously and may
			// not have executed yet; mark connected here so IsConnected
			// is true when Connect returns.
			c.connMu.Lock()
			c.connected = true
			c.connMu.Unlock()
			return nil
		}

		err := token.Error()
		if err == nil {
			err = ErrTimeout
		}
		if logger := c.getLogger(); logger != nil {
			logger.Warn("broker connection failed, retrying",
				"broker", c.brokerURL,
				"error", err,
				"retry_in", delay.String(),
			)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
		case <-time.After(delay):
		}
		delay = nextDelay(delay, maxDelay)
	}
}

// handleConnect is called when a connection is (re-)established.
func (c *Client) handleConnect() {
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	c.restoreSubscriptions()

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleDisconnect is called when the connection is lost.
func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// restoreSubscriptions re-subscribes to all tracked topics after reconnect.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		// Re-subscribe (ignore errors during reconnection)
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

// Close disconnects from the broker. Idempotent; closing an already
// closed client is not an error.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	// Disconnect with quiesce period for pending operations
	c.client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// SetOnConnect sets a callback to be invoked when connection is established.
// This is called on initial connect and on every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback to be invoked when connection is lost.
// The error parameter describes why the connection was lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for retry and handler-error logging.
// If not set, errors in handlers are silently ignored.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}
