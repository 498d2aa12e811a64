package escrow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// rpcClient is a minimal JSON-RPC 2.0 client over a websocket connection,
// with request-id correlation so concurrent calls share one socket.
type rpcClient struct {
	url string

	mu      sync.Mutex
	conn    *websocket.Conn
	nextID  uint64
	pending map[uint64]chan rpcResponse
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func newRPCClient(url string) *rpcClient {
	return &rpcClient{
		url:     url,
		pending: make(map[uint64]chan rpcResponse),
	}
}

// Connect dials the node. Safe to call again after a drop.
func (c *rpcClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dialing chain node: %w", err)
	}

	c.conn = conn
	go c.readLoop(conn)

	log.Info().Str("url", c.url).Msg("connected to chain node")
	return nil
}

// Connected reports whether the socket is currently up.
func (c *rpcClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close tears down the connection and fails all in-flight calls.
func (c *rpcClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// Call sends one request and waits for the matching response or the context
// deadline. A disconnected client fails immediately rather than queueing.
func (c *rpcClient) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}

	c.nextID++
	id := c.nextID
	ch := make(chan rpcResponse, 1)
	c.pending[id] = ch

	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	err := c.conn.WriteJSON(req)
	c.mu.Unlock()

	if err != nil {
		c.dropPending(id)
		return nil, fmt.Errorf("writing rpc request: %w", err)
	}

	select {
	case <-ctx.Done():
		c.dropPending(id)
		return nil, ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrNotConnected
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

func (c *rpcClient) dropPending(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *rpcClient) readLoop(conn *websocket.Conn) {
	for {
		var resp rpcResponse
		if err := conn.ReadJSON(&resp); err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				log.Warn().Err(err).Msg("chain node connection lost")
			}
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			for id, ch := range c.pending {
				close(ch)
				delete(c.pending, id)
			}
			c.mu.Unlock()
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()

		if ok {
			ch <- resp
		}
	}
}
