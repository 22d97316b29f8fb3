// internal/transport/tcp.go
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/jason-s-yu/wizard/internal/middleware"
	"github.com/sirupsen/logrus"
)

const (
	// MaxLineLength bounds a single inbound line.
	MaxLineLength = 4096
	writeTimeout  = 10 * time.Second
)

// TCPServer accepts line-protocol clients over plain TCP.
type TCPServer struct {
	addr   string
	sink   Sink
	logger *logrus.Logger

	// OutBuffer is the per-connection outbound queue size.
	OutBuffer int

	mu    sync.Mutex
	ln    net.Listener
	conns *connSet
	wg    sync.WaitGroup
}

// NewTCPServer returns a server for addr (e.g. ":5555").
func NewTCPServer(addr string, sink Sink, logger *logrus.Logger) *TCPServer {
	return &TCPServer{
		addr:      addr,
		sink:      sink,
		logger:    logger,
		OutBuffer: DefaultOutBuffer,
		conns:     newConnSet(),
	}
}

// Listen binds the socket. Serve calls it if it has not been called yet.
func (s *TCPServer) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *TCPServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections until ctx is done. On return every connection has
// been flushed and closed.
func (s *TCPServer) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.logger.Infof("Listening for TCP clients on %s", s.ln.Addr())

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		s.ln.Close()
		s.conns.closeAll()
	}()

	var err error
	for {
		nc, acceptErr := s.ln.Accept()
		if acceptErr != nil {
			if ctx.Err() == nil && !errors.Is(acceptErr, net.ErrClosed) {
				err = fmt.Errorf("accept: %w", acceptErr)
			}
			break
		}
		s.wg.Add(1)
		go s.handle(nc)
	}
	close(stop)
	s.wg.Wait()
	return err
}

func (s *TCPServer) handle(nc net.Conn) {
	defer s.wg.Done()

	remote := nc.RemoteAddr().String()
	closeConn := func() { nc.Close() }
	lc := newLineConn(remote, s.OutBuffer, closeConn, closeConn)
	s.conns.add(lc)
	defer s.conns.remove(lc)

	go lc.writeLoop(func(line string) error {
		_ = nc.SetWriteDeadline(time.Now().Add(writeTimeout))
		_, err := io.WriteString(nc, line+"\r\n")
		return err
	})

	middleware.LogConnect(s.logger, "tcp", remote)
	s.sink.Connected(lc)

	scanner := bufio.NewScanner(nc)
	scanner.Buffer(make([]byte, 0, 512), MaxLineLength)
	for scanner.Scan() {
		s.sink.Line(lc, strings.TrimRight(scanner.Text(), "\r"))
	}
	err := scanner.Err()
	if errors.Is(err, net.ErrClosed) {
		// closed from our side
		err = nil
	}

	lc.Close()
	<-lc.Done()
	s.sink.Disconnected(lc, err)
	middleware.LogDisconnect(s.logger, "tcp", remote, err)
}
