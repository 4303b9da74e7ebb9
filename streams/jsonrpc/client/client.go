package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Iwinswap/iwinswap-amm-router/protocols/swap"
	"github.com/Iwinswap/iwinswap-amm-router/streams/jsonrpc/server"
	"github.com/ethereum/go-ethereum/rpc"
)

// Constants for reconnection logic
const (
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 30 * time.Second

	// RpcNamespace is the namespace under which the exchange is served.
	RpcNamespace                 = server.RpcNamespace
	SwapEventsSubscriptionMethod = "subscribeSwapEvents"

	backfillPageSize = 500
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the configuration for the client.
type Config struct {
	// URL must be a WebSocket endpoint; subscriptions are not available over HTTP.
	URL        string
	Logger     Logger
	BufferSize uint
	// FromSequence, when non-zero, replays retained events from that sequence number
	// before streaming live ones.
	FromSequence uint64
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.URL == "" {
		return errors.New("config: URL is required")
	}
	if c.BufferSize < 1 {
		return errors.New("config: BufferSize must be greater than 0")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	return nil
}

// Client follows the swap event stream of a dex server. It reconnects on failure and, after
// a reconnect, replays the events it missed from the server's retained history so that
// events are delivered in sequence order without duplicates.
type Client struct {
	lastSequence uint64
	eventCh      chan swap.SwapEvent
	errCh        chan error
	logger       Logger
}

// NewClient creates a new client and starts the connection and subscription manager.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	client := &Client{
		eventCh: make(chan swap.SwapEvent, cfg.BufferSize),
		errCh:   make(chan error, 1),
		logger:  cfg.Logger,
	}
	if cfg.FromSequence > 0 {
		client.lastSequence = cfg.FromSequence - 1
	}

	go client.run(ctx, cfg.URL, cfg.FromSequence > 0)
	return client, nil
}

// Events returns a read-only channel of swap events, in sequence order.
func (c *Client) Events() <-chan swap.SwapEvent {
	return c.eventCh
}

// Err returns a read-only channel for receiving fatal (unrecoverable) errors.
func (c *Client) Err() <-chan error {
	return c.errCh
}

// run handles the entire lifecycle of the client, including reconnection.
func (c *Client) run(ctx context.Context, url string, replay bool) {
	defer close(c.eventCh)
	defer close(c.errCh)
	reconnectDelay := initialReconnectDelay

	for {
		if ctx.Err() != nil {
			c.logger.Info("Client context canceled, shutting down.")
			return
		}

		c.logger.Info("Attempting to connect to RPC server", "url", url)
		rpcClient, err := rpc.DialContext(ctx, url)
		if err != nil {
			c.logger.Error("Failed to connect to RPC server, will retry...", "error", err, "delay", reconnectDelay)
			if !sleep(ctx, reconnectDelay) {
				return
			}
			reconnectDelay = min(reconnectDelay*2, maxReconnectDelay)
			continue
		}

		c.logger.Info("Successfully connected to RPC server.")
		reconnectDelay = initialReconnectDelay // Reset delay on success

		err = c.subscribeAndProcess(ctx, NewDexClient(rpcClient), replay)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info("Context canceled during subscription, shutting down.", "error", err)
				return
			}
			if errors.Is(err, rpc.ErrNotificationsUnsupported) {
				c.errCh <- fmt.Errorf("%s: %w", url, err)
				return
			}
			c.logger.Error("Subscription failed, will reconnect...", "error", err, "delay", reconnectDelay)
			if !sleep(ctx, reconnectDelay) {
				return
			}
			reconnectDelay = min(reconnectDelay*2, maxReconnectDelay)
		}
		// every later connection must fill the gap left by the broken one
		replay = true
	}
}

// subscribeAndProcess subscribes first and backfills second, so no event falls between
// the two; events seen in both are dropped by sequence number.
func (c *Client) subscribeAndProcess(ctx context.Context, dex *DexClient, replay bool) error {
	defer dex.Close()

	rawCh := make(chan swap.SwapEvent)
	sub, err := dex.SubscribeSwapEvents(ctx, rawCh)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	if replay {
		if err := c.backfill(ctx, dex); err != nil {
			return fmt.Errorf("failed to backfill: %w", err)
		}
	}

	c.logger.Info("Successfully subscribed. Waiting for swap events...")
	for {
		select {
		case ev := <-rawCh:
			if err := c.deliver(ctx, ev); err != nil {
				return err
			}
		case err := <-sub.Err():
			return err
		case <-ctx.Done():
			c.logger.Info("Context cancelled, stopping subscription.")
			return ctx.Err()
		}
	}
}

func (c *Client) backfill(ctx context.Context, dex *DexClient) error {
	for {
		events, err := dex.Events(ctx, c.lastSequence+1, backfillPageSize)
		if err != nil {
			return err
		}
		if len(events) > 0 && events[0].Sequence > c.lastSequence+1 {
			c.logger.Warn("Swap events were dropped from the server history before they could be replayed",
				"expected_sequence", c.lastSequence+1, "first_available", events[0].Sequence)
		}
		for _, ev := range events {
			if err := c.deliver(ctx, ev); err != nil {
				return err
			}
		}
		if len(events) < backfillPageSize {
			return nil
		}
	}
}

// deliver forwards ev unless it was already delivered.
func (c *Client) deliver(ctx context.Context, ev swap.SwapEvent) error {
	if ev.Sequence <= c.lastSequence {
		c.logger.Debug("Dropping duplicate swap event", "sequence", ev.Sequence)
		return nil
	}
	if c.lastSequence > 0 && ev.Sequence > c.lastSequence+1 {
		c.logger.Warn("Gap in swap event sequence", "last_sequence", c.lastSequence, "sequence", ev.Sequence)
	}
	c.logger.Debug("Received swap event",
		"sequence", ev.Sequence,
		"pool", ev.Pool,
		"asset_in", ev.AssetIn().Name,
		"asset_out", ev.AssetOut().Name,
		"amount_in", ev.AmountIn(),
		"amount_out", ev.AmountOut(),
		"latency_ms", time.Since(ev.Timestamp).Milliseconds(),
	)
	select {
	case c.eventCh <- ev:
		c.lastSequence = ev.Sequence
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sleep waits for d and reports whether ctx is still live.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
