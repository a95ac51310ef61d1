package wsbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/meandmytram/pybind-example/internal/binding"
)

// ErrClientClosed is returned by requests made after the connection has
// gone away.
var ErrClientClosed = errors.New("bridge connection closed")

// Client is a bridge client. Requests may be issued concurrently; a
// background read loop routes each response to its caller by requestId and
// answers the server's keepalive pings.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Response
	readErr error
	done    chan struct{}
}

// Dial connects to a bridge at url (ws:// or wss://).
func Dial(ctx context.Context, url string) (*Client, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		conn:    conn,
		pending: make(map[string]chan Response),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Construct creates an instance of class owned by this connection.
func (c *Client) Construct(ctx context.Context, class string) (string, error) {
	resp, err := c.do(ctx, Request{Type: TypeConstruct, Class: class})
	if err != nil {
		return "", err
	}
	return resp.Handle, nil
}

// Call invokes method on a handle previously returned by Construct.
func (c *Client) Call(ctx context.Context, handle, method string, args ...float64) (float64, error) {
	resp, err := c.do(ctx, Request{Type: TypeCall, Handle: handle, Method: method, Args: args})
	if err != nil {
		return 0, err
	}
	return value(resp)
}

// Release discards a handle.
func (c *Client) Release(ctx context.Context, handle string) error {
	_, err := c.do(ctx, Request{Type: TypeRelease, Handle: handle})
	return err
}

// Invoke calls method on a temporary instance of class.
func (c *Client) Invoke(ctx context.Context, class, method string, args ...float64) (float64, error) {
	resp, err := c.do(ctx, Request{Type: TypeInvoke, Class: class, Method: method, Args: args})
	if err != nil {
		return 0, err
	}
	return value(resp)
}

// Describe returns the module name and its classes.
func (c *Client) Describe(ctx context.Context) (string, []binding.ClassInfo, error) {
	resp, err := c.do(ctx, Request{Type: TypeDescribe})
	if err != nil {
		return "", nil, err
	}
	return resp.Module, resp.Classes, nil
}

// Close sends a normal close frame, closes the connection and waits for
// the read loop to exit.
func (c *Client) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	err := c.conn.Close()
	<-c.done
	return err
}

// readLoop owns every read on the connection. The default ping handler
// replies with a pong from inside ReadMessage, which keeps the server's read
// deadline moving while the caller is idle.
func (c *Client) readLoop() {
	var err error
	defer func() {
		c.mu.Lock()
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			c.readErr = ErrClientClosed
		} else {
			c.readErr = fmt.Errorf("%w: %v", ErrClientClosed, err)
		}
		c.pending = make(map[string]chan Response)
		c.mu.Unlock()
		close(c.done)
	}()

	for {
		var data []byte
		_, data, err = c.conn.ReadMessage()
		if err != nil {
			return
		}

		var resp Response
		if json.Unmarshal(data, &resp) != nil {
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.RequestID]
		delete(c.pending, resp.RequestID)
		c.mu.Unlock()
		if ok {
			ch <- resp // buffered; nobody may be waiting any more
		}
	}
}

func (c *Client) do(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	req.RequestID = uuid.NewString()
	data, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	ch := make(chan Response, 1)
	c.mu.Lock()
	if c.readErr != nil {
		err := c.readErr
		c.mu.Unlock()
		return Response{}, err
	}
	c.pending[req.RequestID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, req.RequestID)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = c.conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		return Response{}, fmt.Errorf("send %s: %w", req.Type, err)
	}

	select {
	case resp := <-ch:
		if !resp.Success {
			return Response{}, &RemoteError{Code: resp.Code, Message: resp.Error}
		}
		return resp, nil
	case <-c.done:
		c.mu.Lock()
		err := c.readErr
		c.mu.Unlock()
		return Response{}, err
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

func value(resp Response) (float64, error) {
	if resp.Result == nil {
		return 0, fmt.Errorf("response %s has no result", resp.RequestID)
	}
	return *resp.Result, nil
}
