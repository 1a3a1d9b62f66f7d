package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/optionvault/ove/internal/logger"
	"github.com/optionvault/ove/internal/market"
	"github.com/optionvault/ove/internal/signer"
	"github.com/optionvault/ove/internal/types"
)

var wsLogger = logger.GetForComponent("exchange_ws")

const (
	rpcTimeout       = 10 * time.Second
	positionPollTime = 5 * time.Second
)

// WSClient is a websocket JSON-RPC client for the order-book exchange. It
// multiplexes request/response pairs by id and dispatches subscription
// notifications to registered channel handlers. Writes are serialized by a
// dedicated mutex; the read loop is the only reader.
type WSClient struct {
	auth *signer.Authorizer

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu       sync.Mutex
	pending  map[uint64]chan rpcResponse
	handlers map[string]func(json.RawMessage)
	closed   chan struct{}

	nextID   atomic.Uint64
	loggedIn atomic.Bool
}

type rpcRequest struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

type notification struct {
	Method string `json:"method"`
	Params struct {
		Channel string          `json:"channel"`
		Data    json.RawMessage `json:"data"`
	} `json:"params"`
}

// Dial connects to the exchange and starts the read loop. The caller owns the
// client and must Close it on shutdown.
func Dial(ctx context.Context, url string, auth *signer.Authorizer) (*WSClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("exchange dial failed: %w", err)
	}
	c := &WSClient{
		auth:     auth,
		conn:     conn,
		pending:  make(map[uint64]chan rpcResponse),
		handlers: make(map[string]func(json.RawMessage)),
		closed:   make(chan struct{}),
	}
	go c.readLoop()
	wsLogger.Info().Str("url", url).Msg("Exchange websocket connected")
	return c, nil
}

// Close tears down the connection; all pending calls fail with ErrNotConnected.
func (c *WSClient) Close() error {
	return c.conn.Close()
}

func (c *WSClient) readLoop() {
	defer func() {
		c.mu.Lock()
		close(c.closed)
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.mu.Unlock()
	}()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			wsLogger.Warn().Err(err).Msg("Exchange websocket read ended")
			return
		}
		var note notification
		if err := json.Unmarshal(raw, &note); err == nil && note.Method == "subscription" {
			c.mu.Lock()
			handler := c.handlers[note.Params.Channel]
			c.mu.Unlock()
			if handler != nil {
				handler(note.Params.Data)
			}
			continue
		}
		var resp rpcResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			wsLogger.Warn().Err(err).Msg("Dropping unparsable exchange message")
			continue
		}
		c.mu.Lock()
		ch := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()
		if ch != nil {
			ch <- resp
		}
	}
}

// SendRPC issues one request and decodes its result into out (may be nil).
// Typed exchange errors come back as *RPCError.
func (c *WSClient) SendRPC(ctx context.Context, method string, params any, out any) error {
	id := c.nextID.Add(1)
	ch := make(chan rpcResponse, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(rpcRequest{ID: id, Method: method, Params: params})
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("rpc write failed: %w", err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return ErrNotConnected
		}
		if resp.Error != nil {
			return resp.Error
		}
		if out != nil {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("rpc result decode failed for %s: %w", method, err)
			}
		}
		return nil
	case <-time.After(rpcTimeout):
		c.dropPending(id)
		return fmt.Errorf("%w: %s", ErrRequestTimeout, method)
	case <-ctx.Done():
		c.dropPending(id)
		return ctx.Err()
	case <-c.closed:
		return ErrNotConnected
	}
}

// dropPending abandons a request whose caller stopped waiting, so the entry
// does not linger until the connection closes.
func (c *WSClient) dropPending(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Login authenticates the session with freshly signed credentials.
func (c *WSClient) Login(ctx context.Context) error {
	creds, err := c.auth.Login()
	if err != nil {
		return err
	}
	if err := c.SendRPC(ctx, "public/login", creds, nil); err != nil {
		return fmt.Errorf("exchange login failed: %w", err)
	}
	c.loggedIn.Store(true)
	wsLogger.Info().Str("wallet", creds.Wallet).Msg("Exchange session authenticated")
	return nil
}

// subscribe registers handlers and blocks until the connection drops or the
// context ends. The subscription itself is best effort: the exchange streams
// whatever it has, readers tolerate staleness.
func (c *WSClient) subscribe(ctx context.Context, channels []string, handler func(channel string, data json.RawMessage)) error {
	c.mu.Lock()
	for _, channel := range channels {
		ch := channel
		c.handlers[ch] = func(data json.RawMessage) { handler(ch, data) }
	}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		for _, channel := range channels {
			delete(c.handlers, channel)
		}
		c.mu.Unlock()
	}()

	var result json.RawMessage
	if err := c.SendRPC(ctx, "subscribe", map[string]any{"channels": channels}, &result); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return ErrNotConnected
	}
}

// SubscribeTickers implements market.Stream over ticker channels.
func (c *WSClient) SubscribeTickers(ctx context.Context, instruments []string, interval market.TickerInterval, apply func(types.Ticker)) error {
	channels := make([]string, 0, len(instruments))
	for _, name := range instruments {
		channels = append(channels, fmt.Sprintf("ticker.%s.%d", name, interval))
	}
	return c.subscribe(ctx, channels, func(channel string, data json.RawMessage) {
		var payload struct {
			InstrumentTicker types.Ticker `json:"instrument_ticker"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			wsLogger.Warn().Str("channel", channel).Err(err).Msg("Dropping malformed ticker notification")
			return
		}
		apply(payload.InstrumentTicker)
	})
}

// SubscribePositions implements market.Stream by polling the subaccount's
// positions and replacing the set wholesale each cycle.
func (c *WSClient) SubscribePositions(ctx context.Context, subaccountID int64, apply func([]types.Position)) error {
	if !c.loggedIn.Load() {
		return ErrLoginRequired
	}
	ticker := time.NewTicker(positionPollTime)
	defer ticker.Stop()
	for {
		var result struct {
			Positions []types.Position `json:"positions"`
		}
		err := c.SendRPC(ctx, "private/get_positions", map[string]any{"subaccount_id": subaccountID}, &result)
		if err != nil {
			return fmt.Errorf("position sync failed: %w", err)
		}
		apply(result.Positions)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closed:
			return ErrNotConnected
		case <-ticker.C:
		}
	}
}

// GetInstruments implements InstrumentClient.
func (c *WSClient) GetInstruments(ctx context.Context, currency string, expired bool) ([]types.Instrument, error) {
	var result []types.Instrument
	err := c.SendRPC(ctx, "public/get_instruments", map[string]any{
		"currency":        currency,
		"instrument_type": "option",
		"expired":         expired,
	}, &result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SendOrder implements TradeClient.
func (c *WSClient) SendOrder(ctx context.Context, params *types.OrderParams) (*types.OrderResponse, error) {
	if !c.loggedIn.Load() {
		return nil, ErrLoginRequired
	}
	var result struct {
		Order types.OrderResponse `json:"order"`
	}
	if err := c.SendRPC(ctx, "private/order", params, &result); err != nil {
		return nil, err
	}
	return &result.Order, nil
}

// SendReplace implements TradeClient.
func (c *WSClient) SendReplace(ctx context.Context, params *types.ReplaceParams) (*types.OrderResponse, error) {
	if !c.loggedIn.Load() {
		return nil, ErrLoginRequired
	}
	var result struct {
		Order types.OrderResponse `json:"order"`
	}
	if err := c.SendRPC(ctx, "private/replace", params, &result); err != nil {
		return nil, err
	}
	return &result.Order, nil
}
