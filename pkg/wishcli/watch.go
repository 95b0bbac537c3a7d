package wishcli

import (
	"context"
	"encoding/json"
	"net/http"

	cws "github.com/coder/websocket"
	"github.com/creachadair/jrpc2"

	"github.com/warpdl/warpq/common"
)

// Notification is a push message from the daemon.
type Notification struct {
	Method string
	Params json.RawMessage
}

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

// Watch connects to the push endpoint and calls fn for every notification
// until ctx is done or the connection drops.
func (c *Client) Watch(ctx context.Context, fn func(Notification)) error {
	conn, _, err := cws.Dial(ctx, c.base.WebSocket(), &cws.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + c.secret}},
	})
	if err != nil {
		return err
	}
	stopped := make(chan error, 1)
	cli := jrpc2.NewClient(&wsChannel{conn: conn, ctx: ctx}, &jrpc2.ClientOptions{
		OnNotify: func(req *jrpc2.Request) {
			var params json.RawMessage
			if req.HasParams() {
				_ = req.UnmarshalParams(&params)
			}
			fn(Notification{Method: req.Method(), Params: params})
		},
		OnStop: func(_ *jrpc2.Client, err error) {
			stopped <- err
		},
	})
	defer cli.Close()

	// the first call also proves the connection is authorized
	var v json.RawMessage
	if err := cli.CallResult(ctx, common.MethodVersion, nil, &v); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-stopped:
		return err
	}
}
