package relay

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/coder/websocket"

	"github.com/nostrpy/nostrcli/internal/chk"
)

// connection wraps one coder/websocket client socket, mirroring the
// teacher's Connection type (pkg/protocol/ws/connection.go) but over
// coder/websocket's simpler Dial/Read/Write/Close surface rather than
// gobwas/ws's frame-level reader/writer.
type connection struct {
	ws *websocket.Conn
}

// dialOptions bundles the TLS and HTTP/SOCKS proxy knobs a Relay.Connect
// call can pass through to the underlying dialer, matching spec.md
// §4.7's (host, port, type) proxy triple.
type dialOptions struct {
	tlsConfig     *tls.Config
	requestHeader http.Header
	proxyHost     string
	proxyPort     int
	proxyType     ProxyType
	hasProxy      bool
}

func dial(ctx context.Context, url string, opts dialOptions) (*connection, error) {
	transport := &http.Transport{}
	if opts.tlsConfig != nil {
		transport.TLSClientConfig = opts.tlsConfig
	}
	if opts.hasProxy {
		if err := applyProxy(transport, opts.proxyHost, opts.proxyPort, opts.proxyType); chk.E(err) {
			return nil, err
		}
	}

	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPClient: &http.Client{Transport: transport},
		HTTPHeader: opts.requestHeader,
	})
	if chk.E(err) {
		return nil, fmt.Errorf("relay: dial %s: %w", url, err)
	}
	conn.SetReadLimit(32 << 20)
	return &connection{ws: conn}, nil
}

// writeText sends one text frame.
func (c *connection) writeText(ctx context.Context, data []byte) error {
	return c.ws.Write(ctx, websocket.MessageText, data)
}

// readText blocks for the next text frame.
func (c *connection) readText(ctx context.Context) ([]byte, error) {
	_, data, err := c.ws.Read(ctx)
	if chk.D(err) {
		return nil, err
	}
	return data, nil
}

// ping sends a control-frame ping and waits for the matching pong, bounded
// by ctx (callers pass a context.WithTimeout for the 10s pong deadline
// spec.md §4.7 requires).
func (c *connection) ping(ctx context.Context) error {
	return c.ws.Ping(ctx)
}

func (c *connection) close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "closing")
}
