package relay

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"golang.org/x/net/proxy"
)

// ProxyType selects the proxy protocol for WithProxy, mirroring spec.md
// §4.7's (host, port, type) proxy triple.
type ProxyType int

const (
	ProxyHTTP ProxyType = iota
	ProxySOCKS5
)

// applyProxy wires a SOCKS5 or HTTP-CONNECT proxy into transport, using
// golang.org/x/net/proxy for SOCKS5 dialing (the idiomatic Go way to
// reach a proxy.Dialer from a host:port pair) and the standard library's
// http.ProxyURL for plain HTTP proxies.
func applyProxy(transport *http.Transport, host string, port int, kind ProxyType) error {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	switch kind {
	case ProxySOCKS5:
		dialer, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
		if err != nil {
			return fmt.Errorf("relay: socks5 dialer: %w", err)
		}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
		return nil
	case ProxyHTTP:
		transport.Proxy = http.ProxyURL(&url.URL{Scheme: "http", Host: addr})
		return nil
	default:
		return fmt.Errorf("relay: unknown proxy type %d", kind)
	}
}
