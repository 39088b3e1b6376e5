package transport

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
)

// Conn is the slice of *websocket.Conn the Manager uses. Tests substitute a
// scripted fake through Config.Dial.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a Conn. The context carries the handshake deadline.
type Dialer func(ctx context.Context, url string, header http.Header) (Conn, error)

// gorillaDial is the production Dialer.
func gorillaDial(ctx context.Context, url string, header http.Header) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 0, // the context deadline governs
	}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrConnectTimeout
		}
		return nil, err
	}
	return conn, nil
}

// writeClose sends a close frame with the given code, best effort.
func writeClose(conn Conn, code int) {
	msg := websocket.FormatCloseMessage(code, "")
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
}
