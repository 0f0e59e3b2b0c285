package tlsconf

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"

	"github.com/quic-go/quic-go/http3"
)

// altSvcMaxAge is how long browsers may remember the HTTP/3 endpoint.
const altSvcMaxAge = 86400

// HTTP3 serves a handler over QUIC next to the TCP server.
type HTTP3 struct {
	srv    *http3.Server
	altSvc string
}

func NewHTTP3(addr string, h http.Handler, tlsConf *tls.Config) (*HTTP3, error) {
	if tlsConf == nil {
		return nil, ErrMissingTLS
	}
	port := ParsePort(addr)
	if port == 0 {
		return nil, fmt.Errorf("http3: address %q has no port", addr)
	}
	return &HTTP3{
		srv: &http3.Server{
			Addr:      addr,
			Handler:   h,
			TLSConfig: tlsConf,
		},
		altSvc: fmt.Sprintf(`h3=":%d"; ma=%d`, port, altSvcMaxAge),
	}, nil
}

// AltSvc advertises the HTTP/3 endpoint on responses from next.
func (h *HTTP3) AltSvc(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Alt-Svc", h.altSvc)
		next.ServeHTTP(w, r)
	})
}

// Serve listens until ctx is done.
func (h *HTTP3) Serve(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() { errc <- h.srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		_ = h.srv.Close()
		<-errc
		return nil
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

var ErrMissingTLS = errors.New("missing TLS configuration")
