package directory

import (
	"context"
	"crypto/tls"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/nwtnni/hoplite-go/cmn/nlog"
)

// Listener is the dedicated notification-listen port: a small net/http
// server receiving ObjectIsReady POSTs from the backend and fanning each
// one out to every subscription live on client, using a handler-dispatch
// pattern over plain HTTP rather than a bespoke binary protocol.
type Listener struct {
	client *Client
	srv    *http.Server
}

// NewListener binds a notification server at addr (e.g. "127.0.0.1:6667")
// dispatching into client. Call ListenAndServe to run it.
func NewListener(addr string, client *Client) *Listener {
	l := &Listener{client: client}
	mux := http.NewServeMux()
	mux.HandleFunc(notifyPath, l.handleNotify)
	l.srv = &http.Server{Addr: addr, Handler: mux}
	return l
}

// Handler exposes the notification endpoint for embedding in a test server
// or a combined mux, without binding its own listener.
func (l *Listener) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(notifyPath, l.handleNotify)
	return mux
}

// UseTLS installs cfg on the underlying server, so the next ListenAndServe
// terminates TLS instead of plain HTTP. Must be called before
// ListenAndServe.
func (l *Listener) UseTLS(cfg *tls.Config) {
	l.srv.TLSConfig = cfg
}

func (l *Listener) ListenAndServe() error {
	nlog.Infoln("directory: notification listener starting on", l.srv.Addr)
	if l.srv.TLSConfig != nil {
		return l.srv.ListenAndServeTLS("", "")
	}
	return l.srv.ListenAndServe()
}

func (l *Listener) Shutdown(ctx context.Context) error {
	return l.srv.Shutdown(ctx)
}

func (l *Listener) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req notifyReq
	if err := jsoniter.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	l.client.dispatch(req.ObjectID)
	w.Header().Set("Content-Type", "application/json")
	_ = jsoniter.NewEncoder(w).Encode(okResp{OK: true})
}
