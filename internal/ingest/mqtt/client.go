// Package mqtt ingests station readings from an MQTT broker and publishes
// flushed samples back to it.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/i474232898/station-aggregator/internal/config"
)

var (
	errStopped      = errors.New("mqtt client stopped")
	errNotConnected = errors.New("mqtt client not connected")
)

// Client owns the broker connection. When a Handler is attached the client
// subscribes to the readings topic on every (re)connect.
type Client struct {
	client    paho.Client
	cfg       *config.AppConfig
	logger    *slog.Logger
	handler   *Handler
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewClient(cfg *config.AppConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(brokerURL(cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)

	// Session settings
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	// Keepalive / timeouts
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ paho.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
		// Clean sessions drop subscriptions, so subscribe again on every connect.
		if err := c.subscribe(); err != nil {
			logger.Error("mqtt subscribe failed", "topic", cfg.MQTTTopic, "error", err)
		}
	})

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = paho.NewClient(opts)
	return c
}

// SetHandler attaches the readings handler. Call it before Connect.
func (c *Client) SetHandler(h *Handler) {
	c.handler = h
}

// brokerURL accepts a bare host or a full scheme://host URL.
func brokerURL(broker string, port int) string {
	if strings.Contains(broker, "://") {
		return fmt.Sprintf("%s:%d", broker, port)
	}
	return fmt.Sprintf("tcp://%s:%d", broker, port)
}

// Connect establishes the broker connection. It waits for the initial
// connection and respects ctx and Disconnect.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return errStopped
	default:
	}

	if c.IsConnected() {
		return nil
	}

	// With ConnectRetry(true) paho keeps retrying internally.
	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			c.client.Disconnect(0)
			return ctx.Err()
		case <-c.stopCh:
			c.client.Disconnect(0)
			return errStopped
		default:
		}
	}
}

func (c *Client) subscribe() error {
	if c.handler == nil {
		return nil
	}

	topic := c.cfg.MQTTTopic
	qos := byte(1) // At least once delivery

	token := c.client.Subscribe(topic, qos, func(_ paho.Client, msg paho.Message) {
		c.handler.HandleMessage(context.Background(), msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	c.logger.Info("subscribed to mqtt topic", "topic", topic, "qos", qos)
	return nil
}

// Publish sends payload to topic and waits for the broker acknowledgement.
func (c *Client) Publish(ctx context.Context, topic string, retained bool, payload []byte) error {
	if !c.IsConnected() {
		return errNotConnected
	}
	return waitToken(ctx, c.client.Publish(topic, 1, retained, payload))
}

func waitToken(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return errors.New("mqtt publish timeout")
	}
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect stops the client and closes the connection. Idempotent.
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	if c.handler != nil && c.IsConnected() {
		token := c.client.Unsubscribe(c.cfg.MQTTTopic)
		token.WaitTimeout(2 * time.Second)
	}
	c.client.Disconnect(250)

	c.setConnected(false)
	c.logger.Info("mqtt client disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
