package wsbridge

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meandmytram/pybind-example/internal/binding"
	"github.com/meandmytram/pybind-example/internal/calculator"
)

func startServer(t *testing.T, opts ...func(*Server)) (*binding.Module, *Server, string) {
	t.Helper()

	mod := calculator.NewModule()
	srv := NewServer(mod, nil)
	for _, opt := range opts {
		opt(srv)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})

	return mod, srv, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string) *Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestConstructCallRelease(t *testing.T) {
	mod, _, url := startServer(t)
	client := dial(t, url)
	ctx := context.Background()

	handle, err := client.Construct(ctx, calculator.ClassName)
	require.NoError(t, err)
	require.NotEmpty(t, handle)
	assert.Equal(t, 1, mod.Instances())

	sum, err := client.Call(ctx, handle, calculator.MethodAdd, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 5.0, sum)

	diff, err := client.Call(ctx, handle, calculator.MethodSubtract, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, 2.0, diff)

	zero, err := client.Call(ctx, handle, calculator.MethodSubtract, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, 0.0, zero)

	require.NoError(t, client.Release(ctx, handle))
	assert.Equal(t, 0, mod.Instances())

	_, err = client.Call(ctx, handle, calculator.MethodAdd, 1, 1)
	assert.ErrorIs(t, err, binding.ErrUnknownHandle)
}

func TestInvokeAndDescribe(t *testing.T) {
	_, _, url := startServer(t)
	client := dial(t, url)
	ctx := context.Background()

	sum, err := client.Invoke(ctx, calculator.ClassName, calculator.MethodAdd, 2.5, -0.5)
	require.NoError(t, err)
	assert.Equal(t, 2.0, sum)

	module, classes, err := client.Describe(ctx)
	require.NoError(t, err)
	assert.Equal(t, calculator.ModuleName, module)
	require.Len(t, classes, 1)
	assert.Equal(t, calculator.ClassName, classes[0].Name)
	assert.Equal(t, []binding.MethodInfo{
		{Name: calculator.MethodAdd, Arity: 2},
		{Name: calculator.MethodSubtract, Arity: 2},
	}, classes[0].Methods)
}

func TestErrorsCrossTheWire(t *testing.T) {
	_, _, url := startServer(t)
	client := dial(t, url)
	ctx := context.Background()

	_, err := client.Construct(ctx, "Abacus")
	assert.ErrorIs(t, err, binding.ErrUnknownClass)

	_, err = client.Invoke(ctx, calculator.ClassName, "multiply", 2, 3)
	assert.ErrorIs(t, err, binding.ErrUnknownMethod)

	_, err = client.Invoke(ctx, calculator.ClassName, calculator.MethodAdd, 1)
	assert.ErrorIs(t, err, binding.ErrArity)

	_, err = client.Invoke(ctx, calculator.ClassName, calculator.MethodAdd, math.MaxFloat64, math.MaxFloat64)
	assert.ErrorIs(t, err, ErrNonFinite)

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, CodeNonFinite, remote.Code)

	// connection is still usable after failures
	sum, err := client.Invoke(ctx, calculator.ClassName, calculator.MethodAdd, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 5.0, sum)
}

func TestHandlesAreSessionScoped(t *testing.T) {
	_, _, url := startServer(t)
	owner := dial(t, url)
	other := dial(t, url)
	ctx := context.Background()

	handle, err := owner.Construct(ctx, calculator.ClassName)
	require.NoError(t, err)

	_, err = other.Call(ctx, handle, calculator.MethodAdd, 1, 2)
	assert.ErrorIs(t, err, binding.ErrUnknownHandle)
	assert.ErrorIs(t, other.Release(ctx, handle), binding.ErrUnknownHandle)

	sum, err := owner.Call(ctx, handle, calculator.MethodAdd, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3.0, sum)
}

func TestDisconnectReleasesInstances(t *testing.T) {
	mod, srv, url := startServer(t)
	client := dial(t, url)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := client.Construct(ctx, calculator.ClassName)
		require.NoError(t, err)
	}
	require.Equal(t, 3, mod.Instances())
	require.Equal(t, 1, srv.Sessions())

	require.NoError(t, client.Close())

	require.Eventually(t, func() bool {
		return mod.Instances() == 0 && srv.Sessions() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMalformedRequests(t *testing.T) {
	_, _, url := startServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var resp Response
	require.NoError(t, conn.ReadJSON(&resp))
	assert.False(t, resp.Success)
	assert.Equal(t, CodeBadRequest, resp.Code)
	assert.Empty(t, resp.RequestID)

	require.NoError(t, conn.WriteJSON(Request{Type: "teleport", RequestID: "r1"}))
	resp = Response{}
	require.NoError(t, conn.ReadJSON(&resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "r1", resp.RequestID)
	assert.Equal(t, CodeBadRequest, resp.Code)

	// wire format as a foreign caller would write it by hand
	raw := `{"type":"invoke","requestId":"r2","class":"Calculator","method":"subtract","args":[5,3]}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "response", decoded["type"])
	assert.Equal(t, "r2", decoded["requestId"])
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, 2.0, decoded["result"])
}

func TestZeroResultIsEncoded(t *testing.T) {
	_, _, url := startServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Request{
		Type: TypeInvoke, RequestID: "z", Class: calculator.ClassName,
		Method: calculator.MethodAdd, Args: []float64{-1, 1},
	}))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"result":0`)
}

func TestIdleClientKeepsSession(t *testing.T) {
	mod, srv, url := startServer(t, func(s *Server) {
		s.pongWait = 300 * time.Millisecond
		s.pingPeriod = 100 * time.Millisecond
	})

	client := dial(t, url)
	ctx := context.Background()

	handle, err := client.Construct(ctx, calculator.ClassName)
	require.NoError(t, err)

	time.Sleep(4 * srv.pongWait)

	assert.Equal(t, 1, srv.Sessions())
	assert.Equal(t, 1, mod.Instances())

	sum, err := client.Call(ctx, handle, calculator.MethodAdd, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 5.0, sum)
}

func TestClientSurvivesTimedOutRequest(t *testing.T) {
	// Replies carry the sequence number of the request they answer; the
	// first reply is late.
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for n := 0; ; n++ {
			var req Request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if n == 0 {
				time.Sleep(200 * time.Millisecond)
			}
			seq := float64(n)
			if err := conn.WriteJSON(Response{Type: TypeResponse, RequestID: req.RequestID, Success: true, Result: &seq}); err != nil {
				return
			}
		}
	}))
	t.Cleanup(ts.Close)

	client := dial(t, "ws"+strings.TrimPrefix(ts.URL, "http"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Invoke(ctx, calculator.ClassName, calculator.MethodAdd, 1, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// the late reply to the abandoned request is dropped
	seq, err := client.Invoke(context.Background(), calculator.ClassName, calculator.MethodAdd, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, seq)
}

func TestClientAfterServerClose(t *testing.T) {
	_, srv, url := startServer(t)
	client := dial(t, url)

	srv.Close()

	require.Eventually(t, func() bool {
		_, err := client.Invoke(context.Background(), calculator.ClassName, calculator.MethodAdd, 1, 1)
		return errors.Is(err, ErrClientClosed)
	}, 2*time.Second, 10*time.Millisecond)
}
