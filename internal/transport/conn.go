// internal/transport/conn.go
package transport

import (
	"sync"
)

// DefaultOutBuffer is the number of queued outbound lines before a client is
// considered too slow and disconnected.
const DefaultOutBuffer = 256

// Conn is a line-oriented client connection.
type Conn interface {
	// Send queues a line without blocking. Returns false if the connection is
	// closed or its queue overflowed, in which case it is being torn down.
	Send(line string) bool
	// Close flushes queued lines and then closes the connection.
	Close()
	RemoteAddr() string
}

// Sink receives connection events from the transports. Calls come from
// per-connection goroutines; implementations hand them off to a single consumer.
type Sink interface {
	Connected(c Conn)
	Line(c Conn, line string)
	Disconnected(c Conn, err error)
}

// lineConn queues outbound lines for a writer goroutine.
type lineConn struct {
	remote string
	out    chan string
	finish func() // closes the underlying connection after the queue is flushed
	abort  func() // tears it down immediately; must not block

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newLineConn(remote string, buffer int, finish, abort func()) *lineConn {
	if buffer <= 0 {
		buffer = DefaultOutBuffer
	}
	return &lineConn{
		remote: remote,
		out:    make(chan string, buffer),
		finish: finish,
		abort:  abort,
		done:   make(chan struct{}),
	}
}

func (c *lineConn) RemoteAddr() string {
	return c.remote
}

func (c *lineConn) Send(line string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.out <- line:
		return true
	default:
		// slow consumer
		c.closed = true
		close(c.out)
		c.abort()
		return false
	}
}

func (c *lineConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.out)
}

// writeLoop writes queued lines until the queue is closed, then tears the
// connection down. Run it in its own goroutine.
func (c *lineConn) writeLoop(write func(line string) error) {
	defer close(c.done)
	for line := range c.out {
		if err := write(line); err != nil {
			c.mu.Lock()
			if !c.closed {
				c.closed = true
				close(c.out)
			}
			c.mu.Unlock()
			c.abort()
			return
		}
	}
	c.finish()
}

// Done is closed once the writer has stopped and the connection is torn down.
func (c *lineConn) Done() <-chan struct{} {
	return c.done
}

// connSet tracks live connections so a server can close them on shutdown.
type connSet struct {
	mu    sync.Mutex
	conns map[*lineConn]struct{}
}

func newConnSet() *connSet {
	return &connSet{conns: make(map[*lineConn]struct{})}
}

func (s *connSet) add(c *lineConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c] = struct{}{}
}

func (s *connSet) remove(c *lineConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}

func (s *connSet) closeAll() {
	s.mu.Lock()
	conns := make([]*lineConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}
