package inject

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"

	"github.com/launchdarkly/roll-forward-tests/framework"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hostAndPort(t *testing.T, server *httptest.Server) (string, int) {
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return u.Hostname(), port
}

func listenerPort(l net.Listener) int {
	return l.Addr().(*net.TCPAddr).Port
}

func helloHandler() http.Handler {
	return httphelpers.HandlerWithResponse(200, nil, []byte("Hello World"))
}

func TestIncompleteConnectionsDoNotBlockNormalRequests(t *testing.T) {
	httphelpers.WithServer(helloHandler(), func(server *httptest.Server) {
		host, port := hostAndPort(t, server)
		injector := NewInjector(Options{})

		for i := 0; i < 3; i++ {
			rc, err := injector.OpenIncomplete(context.Background(), host, port)
			require.NoError(t, err)
			assert.True(t, rc.IsOpen())
		}
		assert.Equal(t, 3, injector.OpenCount())

		client := http.Client{Timeout: 2 * time.Second}
		resp, err := client.Get(server.URL)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, "Hello World", string(body))

		assert.Equal(t, 3, injector.CloseAll())
		assert.Equal(t, 0, injector.OpenCount())
		assert.Equal(t, 0, injector.CloseAll())
	})
}

func TestIncompletePayloadHasNoHeaderTerminator(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	received := make(chan string, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		data, _ := io.ReadAll(conn)
		received <- string(data)
	}()

	injector := NewInjector(Options{})
	rc, err := injector.OpenIncomplete(context.Background(), "127.0.0.1", listenerPort(l))
	require.NoError(t, err)
	defer rc.Close()

	select {
	case data := <-received:
		assert.Equal(t, IncompletePayload, data)
		assert.NotContains(t, data, "\r\n\r\n")
		assert.False(t, strings.HasSuffix(data, "\r\n"))
	case <-time.After(3 * time.Second):
		require.Fail(t, "server never finished reading")
	}
}

func TestSendMalformedThenNormalRequestSucceeds(t *testing.T) {
	httphelpers.WithServer(helloHandler(), func(server *httptest.Server) {
		host, port := hostAndPort(t, server)
		injector := NewInjector(Options{})

		require.NoError(t, injector.SendMalformed(context.Background(), host, port))
		assert.Equal(t, 0, injector.OpenCount())

		client := http.Client{Timeout: 2 * time.Second}
		resp, err := client.Get(server.URL)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, 200, resp.StatusCode)
	})
}

func TestSendMalformedSwallowsReset(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			_ = conn.(*net.TCPConn).SetLinger(0)
			_ = conn.Close()
		}
	}()

	injector := NewInjector(Options{})
	for i := 0; i < 20; i++ {
		assert.NoError(t, injector.SendMalformed(context.Background(), "127.0.0.1", listenerPort(l)))
	}
}

func resettingDialer(_ context.Context, network, address string) (net.Conn, error) {
	return nil, &net.OpError{Op: "dial", Net: network, Err: os.NewSyscallError("connect", syscall.ECONNRESET)}
}

func refusingDialer(_ context.Context, network, address string) (net.Conn, error) {
	return nil, &net.OpError{Op: "dial", Net: network, Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}
}

func TestResetWhileConnectingIsNotAnError(t *testing.T) {
	var logged framework.CapturingLogger
	injector := NewInjector(Options{Logger: &logged})
	injector.dialContext = resettingDialer

	for i := 0; i < 20; i++ {
		assert.NoError(t, injector.SendMalformed(context.Background(), "127.0.0.1", 4321))
	}

	rc, err := injector.OpenIncomplete(context.Background(), "127.0.0.1", 4321)
	require.NoError(t, err)
	require.NotNil(t, rc)
	assert.False(t, rc.IsOpen())
	assert.Equal(t, "127.0.0.1:4321", rc.Address())
	assert.NoError(t, rc.Close())
	assert.Equal(t, 0, injector.OpenCount())

	require.NotEmpty(t, logged.Output())
	assert.Contains(t, logged.Output()[0].Message, "reset the connection while it was being opened")
}

func TestRefusedWhileConnectingIsConnectError(t *testing.T) {
	injector := NewInjector(Options{})
	injector.dialContext = refusingDialer

	var ce *ConnectError
	err := injector.SendMalformed(context.Background(), "127.0.0.1", 4321)
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, syscall.ECONNREFUSED)

	rc, err := injector.OpenIncomplete(context.Background(), "127.0.0.1", 4321)
	assert.Nil(t, rc)
	require.ErrorAs(t, err, &ce)
}

func TestMalformedPayloadIsInvalid(t *testing.T) {
	requestLine := MalformedPayload[:strings.Index(MalformedPayload, "\r\n")]
	assert.Contains(t, requestLine, ";")
	assert.Contains(t, requestLine, "\x01")
	assert.Greater(t, strings.Count(requestLine, " "), 2)
	assert.False(t, strings.HasSuffix(MalformedPayload, "\r\n"))
}

func TestDialFailureIsConnectError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listenerPort(l)
	require.NoError(t, l.Close())

	injector := NewInjector(Options{DialTimeout: 500 * time.Millisecond})

	err = injector.SendMalformed(context.Background(), "127.0.0.1", port)
	var ce *ConnectError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), ce.Address)

	rc, err := injector.OpenIncomplete(context.Background(), "127.0.0.1", port)
	assert.Nil(t, rc)
	require.ErrorAs(t, err, &ce)
}

func TestCloseIsIdempotent(t *testing.T) {
	httphelpers.WithServer(helloHandler(), func(server *httptest.Server) {
		host, port := hostAndPort(t, server)
		injector := NewInjector(Options{})

		rc, err := injector.OpenIncomplete(context.Background(), host, port)
		require.NoError(t, err)

		assert.NoError(t, rc.Close())
		assert.False(t, rc.IsOpen())
		assert.NoError(t, rc.Close())
		assert.Equal(t, 0, injector.OpenCount())
	})
}
