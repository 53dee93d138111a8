// Package admin serves the HTTP diagnostics surface every joynr
// process exposes alongside its RPC endpoints: Prometheus metrics,
// liveness/readiness, and a /status summary of the local capabilities
// directory. Adapted from the teacher's admin server, which served
// only /metrics, /ping, /ready and optional pprof.
package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusProvider supplies the live counts shown at /status.
type StatusProvider interface {
	Status() Status
}

// Status is a snapshot of directory and subscription state.
type Status struct {
	LocalCapabilities    int `json:"localCapabilities"`
	CachedCapabilities   int `json:"cachedCapabilities"`
	ActiveSubscriptions  int `json:"activeSubscriptions"`
	QueuedSubscriptions  int `json:"queuedSubscriptions"`
}

type handler struct {
	promHandler http.Handler
	enablePprof bool
	status      StatusProvider
}

// NewServer returns an initialized `http.Server`, configured to listen on an address.
// A nil status leaves /status reporting zero counts.
func NewServer(addr string, enablePprof bool, status StatusProvider) *http.Server {
	h := &handler{
		promHandler: promhttp.Handler(),
		enablePprof: enablePprof,
		status:      status,
	}

	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 15 * time.Second,
	}
}

func (h *handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	debugPathPrefix := "/debug/pprof/"
	if h.enablePprof && strings.HasPrefix(req.URL.Path, debugPathPrefix) {
		switch req.URL.Path {
		case fmt.Sprintf("%scmdline", debugPathPrefix):
			pprof.Cmdline(w, req)
		case fmt.Sprintf("%sprofile", debugPathPrefix):
			pprof.Profile(w, req)
		case fmt.Sprintf("%strace", debugPathPrefix):
			pprof.Trace(w, req)
		case fmt.Sprintf("%ssymbol", debugPathPrefix):
			pprof.Symbol(w, req)
		default:
			pprof.Index(w, req)
		}
		return
	}
	switch req.URL.Path {
	case "/metrics":
		h.promHandler.ServeHTTP(w, req)
	case "/ping":
		h.servePing(w)
	case "/ready":
		h.serveReady(w)
	case "/status":
		h.serveStatus(w)
	default:
		http.NotFound(w, req)
	}
}

func (h *handler) servePing(w http.ResponseWriter) {
	w.Write([]byte("pong\n"))
}

func (h *handler) serveReady(w http.ResponseWriter) {
	w.Write([]byte("ok\n"))
}

func (h *handler) serveStatus(w http.ResponseWriter) {
	var s Status
	if h.status != nil {
		s = h.status.Status()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}
