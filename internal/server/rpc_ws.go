package server

import (
	"context"
	"net/http"

	cws "github.com/coder/websocket"
	"github.com/creachadair/jrpc2"
)

// wsChannel adapts a coder/websocket.Conn to the jrpc2 Channel interface.
type wsChannel struct {
	conn *cws.Conn
	ctx  context.Context
}

func (c *wsChannel) Send(data []byte) error {
	return c.conn.Write(c.ctx, cws.MessageText, data)
}

func (c *wsChannel) Recv() ([]byte, error) {
	_, data, err := c.conn.Read(c.ctx)
	return data, err
}

func (c *wsChannel) Close() error {
	return c.conn.Close(cws.StatusNormalClosure, "")
}

// serveWebSocket runs a push-enabled jrpc2 server over one WebSocket
// connection until the client goes away.
func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := cws.Accept(w, r, &cws.AcceptOptions{
		OriginPatterns: s.opts.OriginPatterns,
	})
	if err != nil {
		s.log.Warning("server: websocket accept: %v", err)
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	srv := jrpc2.NewServer(s.assigner, &jrpc2.ServerOptions{AllowPush: true})
	srv.Start(&wsChannel{conn: conn, ctx: ctx})
	s.notifier.Register(srv)
	defer s.notifier.Unregister(srv)

	go func() {
		<-ctx.Done()
		srv.Stop()
	}()
	if err := srv.Wait(); err != nil && ctx.Err() == nil {
		s.log.Info("server: websocket client left: %v", err)
	}
}
