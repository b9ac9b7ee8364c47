package wsd

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/wsdiscovery/wsdd/internal/eventsink"
)

// HTTPServer is the per-MEP metadata responder: one net/http.Server bound
// to the MEP's listen address on the WSD HTTP port, accepting POST
// requests at /<own-uuid> and delegating the body to the host role's
// message engine.
type HTTPServer struct {
	srv  *http.Server
	sink eventsink.Sink
}

// NewHTTPServer builds (but does not start) an HTTP server for host,
// listening on listenAddr (which must already include the WSD HTTP port)
// and accepting only POST /<uuid>.
func NewHTTPServer(listenAddr string, uuidPath string, host *Host, sink eventsink.Sink) *HTTPServer {
	mux := http.NewServeMux()
	mux.HandleFunc("/"+uuidPath, func(w http.ResponseWriter, r *http.Request) {
		handleMetadataPost(w, r, host, sink)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return &HTTPServer{
		srv:  &http.Server{Addr: listenAddr, Handler: mux},
		sink: sink,
	}
}

func handleMetadataPost(w http.ResponseWriter, r *http.Request, host *Host, sink eventsink.Sink) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "application/soap+xml") {
		http.Error(w, "unsupported content type", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxDatagramLen))
	if err != nil {
		http.Error(w, "error reading body", http.StatusBadRequest)
		return
	}

	reply, ok, err := host.HandleHTTPBody(body)
	if err != nil {
		sink.Debugf("wsd: http metadata request: %v", err)
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}
	if !ok {
		http.Error(w, "no handler for action", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/soap+xml")
	w.WriteHeader(http.StatusOK)
	w.Write(reply)
}

// Start begins serving in the background. Listen errors after startup are
// reported to sink rather than returned, matching the fire-and-forget
// lifecycle net/http.Server expects.
func (s *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.sink.Warnf("wsd: http server on %s: %v", s.srv.Addr, err)
		}
	}()
	return nil
}

// Close gracefully shuts the server down.
func (s *HTTPServer) Close(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
