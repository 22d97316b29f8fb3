// internal/transport/ws.go
package transport

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/wizard/internal/middleware"
	"github.com/sirupsen/logrus"
)

// Subprotocol is the WebSocket subprotocol clients must request.
const Subprotocol = "wizard"

// WSPath is where the gateway is mounted.
const WSPath = "/ws"

// WSGateway serves the line protocol over WebSocket, one text frame per line.
type WSGateway struct {
	sink   Sink
	logger *logrus.Logger

	OutBuffer int

	conns *connSet
	wg    sync.WaitGroup
}

// NewWSGateway returns a gateway that forwards events to sink.
func NewWSGateway(sink Sink, logger *logrus.Logger) *WSGateway {
	return &WSGateway{
		sink:      sink,
		logger:    logger,
		OutBuffer: DefaultOutBuffer,
		conns:     newConnSet(),
	}
}

// Handler returns the HTTP handler with the gateway mounted at WSPath.
func (g *WSGateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(WSPath, middleware.LogMiddleware(g.logger)(http.HandlerFunc(g.serveWS)))
	return mux
}

// Serve runs an HTTP server on addr until ctx is done, then closes every connection.
func (g *WSGateway) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           g.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		g.logger.Infof("Listening for WebSocket clients on %s%s", addr, WSPath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	g.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	return nil
}

// Shutdown flushes and closes every connection and waits for their handlers.
func (g *WSGateway) Shutdown() {
	g.conns.closeAll()
	g.wg.Wait()
}

func (g *WSGateway) serveWS(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{Subprotocol},
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		g.logger.Warnf("WebSocket accept error from %s: %v", r.RemoteAddr, err)
		return
	}
	defer c.CloseNow()

	if c.Subprotocol() != Subprotocol {
		c.Close(websocket.StatusPolicyViolation, "Client must use the 'wizard' subprotocol.")
		return
	}
	c.SetReadLimit(MaxLineLength)

	g.wg.Add(1)
	defer g.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	remote := r.RemoteAddr
	lc := newLineConn(remote, g.OutBuffer,
		func() { c.Close(websocket.StatusNormalClosure, "") },
		func() { c.CloseNow() },
	)
	g.conns.add(lc)
	defer g.conns.remove(lc)

	go lc.writeLoop(func(line string) error {
		writeCtx, cancelWrite := context.WithTimeout(ctx, writeTimeout)
		defer cancelWrite()
		return c.Write(writeCtx, websocket.MessageText, []byte(line))
	})

	middleware.LogConnect(g.logger, "ws", remote)
	g.sink.Connected(lc)

	var readErr error
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				readErr = err
			}
			break
		}
		if typ != websocket.MessageText {
			g.logger.Debugf("Ignoring non-text frame from %s", remote)
			continue
		}
		g.sink.Line(lc, strings.TrimRight(string(data), "\r\n"))
	}

	lc.Close()
	<-lc.Done()
	g.sink.Disconnected(lc, readErr)
	middleware.LogDisconnect(g.logger, "ws", remote, readErr)
}
