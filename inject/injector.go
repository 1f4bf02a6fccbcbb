// Package inject opens raw TCP connections to a server under test and sends it requests
// that no HTTP client library would produce.
package inject

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/launchdarkly/roll-forward-tests/framework"
)

const (
	// IncompletePayload is a plausible request line followed by a header name with no
	// value and no terminating blank line, so a server waiting for the end of the headers
	// waits forever.
	IncompletePayload = "GET / HTTP/1.1\r\nHost: localhost\r\nX-Incomplete-Header"

	// MalformedPayload has a request target full of characters that are not allowed
	// there and ends in a header line with no CRLF.
	MalformedPayload = "GET /;;;not a\x01valid;target\x7f HTTP/1.1\r\nHost: localhost\r\nBroken-Header: no-terminator"

	DefaultDialTimeout  = 2 * time.Second
	DefaultWriteTimeout = 2 * time.Second
)

// errResetWhileConnecting is returned by dial when the server accepted the connection and
// reset it before the connect completed on our side.
var errResetWhileConnecting = errors.New("connection reset while connecting")

type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

type Options struct {
	Logger       framework.Logger
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// Injector sends misbehaving traffic. It remembers every connection it leaves open so that
// CloseAll can guarantee none of them outlives the case that opened it.
type Injector struct {
	logger       framework.Logger
	dialTimeout  time.Duration
	writeTimeout time.Duration
	dialContext  dialFunc

	lock sync.Mutex
	open map[*RawConnection]struct{}
}

func NewInjector(opts Options) *Injector {
	i := &Injector{
		logger:       opts.Logger,
		dialTimeout:  opts.DialTimeout,
		writeTimeout: opts.WriteTimeout,
		open:         make(map[*RawConnection]struct{}),
	}
	if i.logger == nil {
		i.logger = framework.NullLogger()
	}
	if i.dialTimeout <= 0 {
		i.dialTimeout = DefaultDialTimeout
	}
	if i.writeTimeout <= 0 {
		i.writeTimeout = DefaultWriteTimeout
	}
	dialer := &net.Dialer{Timeout: i.dialTimeout}
	i.dialContext = dialer.DialContext
	return i
}

// RawConnection is a connection left open by OpenIncomplete. Close is its only terminal
// transition and may be called any number of times.
type RawConnection struct {
	owner   *Injector
	conn    net.Conn
	address string

	lock sync.Mutex
	open bool
}

func (c *RawConnection) Address() string {
	return c.address
}

func (c *RawConnection) IsOpen() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.open
}

func (c *RawConnection) Close() error {
	c.lock.Lock()
	if !c.open {
		c.lock.Unlock()
		return nil
	}
	c.open = false
	c.lock.Unlock()

	c.owner.forget(c)
	return c.conn.Close()
}

// OpenIncomplete connects to host:port, writes IncompletePayload and returns the
// connection still open. If the server resets the connection during the write, the
// returned connection is already closed; that is not an error. The same holds when the
// reset arrives before the connect completes.
func (i *Injector) OpenIncomplete(ctx context.Context, host string, port int) (*RawConnection, error) {
	conn, address, err := i.dial(ctx, host, port)
	if errors.Is(err, errResetWhileConnecting) {
		return &RawConnection{owner: i, address: address}, nil
	}
	if err != nil {
		return nil, err
	}
	rc := &RawConnection{owner: i, conn: conn, address: address, open: true}
	i.lock.Lock()
	i.open[rc] = struct{}{}
	i.lock.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(i.writeTimeout))
	_, err = conn.Write([]byte(IncompletePayload))
	if err != nil {
		_ = rc.Close()
		if err := i.checkWrite(address, err); err != nil {
			return nil, err
		}
		return rc, nil
	}
	i.logger.Printf("Holding incomplete request open on %s (local %s)", address, conn.LocalAddr())
	return rc, nil
}

// SendMalformed connects to host:port, writes MalformedPayload and closes the connection
// without reading. A reset or broken pipe while connecting or writing is expected and
// ignored.
func (i *Injector) SendMalformed(ctx context.Context, host string, port int) error {
	conn, address, err := i.dial(ctx, host, port)
	if errors.Is(err, errResetWhileConnecting) {
		return nil
	}
	if err != nil {
		return err
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(i.writeTimeout))
	_, err = conn.Write([]byte(MalformedPayload))
	if err := i.checkWrite(address, err); err != nil {
		return err
	}
	i.logger.Printf("Sent malformed request to %s", address)
	return nil
}

// CloseAll closes every connection opened by OpenIncomplete that is still open and
// returns how many there were.
func (i *Injector) CloseAll() int {
	i.lock.Lock()
	conns := make([]*RawConnection, 0, len(i.open))
	for c := range i.open {
		conns = append(conns, c)
	}
	i.lock.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	if len(conns) > 0 {
		i.logger.Printf("Closed %d leftover raw connection(s)", len(conns))
	}
	return len(conns)
}

// OpenCount returns the number of connections currently held open.
func (i *Injector) OpenCount() int {
	i.lock.Lock()
	defer i.lock.Unlock()
	return len(i.open)
}

func (i *Injector) forget(c *RawConnection) {
	i.lock.Lock()
	delete(i.open, c)
	i.lock.Unlock()
}

func (i *Injector) dial(ctx context.Context, host string, port int) (net.Conn, string, error) {
	address := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := i.dialContext(ctx, "tcp", address)
	if err != nil {
		if isPeerReset(err) {
			i.logger.Printf("Server on %s reset the connection while it was being opened: %s", address, err)
			return nil, address, errResetWhileConnecting
		}
		return nil, address, &ConnectError{Address: address, Err: err}
	}
	return conn, address, nil
}

// checkWrite swallows the errors a server produces by hanging up on us and returns any
// other write error.
func (i *Injector) checkWrite(address string, err error) error {
	if err == nil {
		return nil
	}
	if isPeerReset(err) {
		i.logger.Printf("Server on %s reset the connection: %s", address, err)
		return nil
	}
	return fmt.Errorf("writing to %s: %w", address, err)
}
