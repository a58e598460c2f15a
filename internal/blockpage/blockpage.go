// Package blockpage serves the local informational page that redirect
// rules point at. It tells the user which state caused the block instead
// of leaving them with a connection error.
package blockpage

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// DefaultAddr is the loopback address the redirect rules target.
const DefaultAddr = "127.0.0.1:8717"

// StatusFunc reports the current enforcement state for rendering.
type StatusFunc func(ctx context.Context) (Status, error)

// Status carries what the page shows.
type Status struct {
	Blocking    bool
	Connected   bool
	AgentActive bool
	Reason      string
	Timestamp   time.Time
}

type Server struct {
	addr   string
	status StatusFunc
	log    *slog.Logger
	srv    *http.Server
}

func New(addr string, status StatusFunc, log *slog.Logger) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	s := &Server{addr: addr, status: status, log: log}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.HandleFunc("/blocked", s.handle)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// URL is the redirect target rules should carry.
func (s *Server) URL() string {
	return fmt.Sprintf("http://%s/blocked", s.addr)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("blockpage: listen %s: %w", s.addr, err)
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("block page listening", "addr", s.addr)
		if err := s.srv.Serve(lis); err != nil && err != http.ErrServerClosed {
			errc <- err
			return
		}
		errc <- nil
	}()
	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutCtx)
		return <-errc
	case err := <-errc:
		return err
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	st, err := s.status(r.Context())
	if err != nil {
		// Status unavailable is itself the disconnected story.
		st = Status{Blocking: true, Connected: false}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pageTmpl.Execute(w, pageData(st)); err != nil {
		s.log.Warn("block page render failed", "error", err)
	}
}

type page struct {
	Title  string
	Lead   string
	Detail string
	When   string
}

func pageData(st Status) page {
	p := page{Title: "Access gated"}
	switch {
	case !st.Connected:
		p.Lead = "The process monitor is not connected."
		p.Detail = "Access stays blocked until the monitor reports in. Activity could not be verified."
	case st.Blocking:
		p.Lead = "An agent CLI is running in a terminal."
		p.Detail = "Close the agent session and this page will stop appearing on the next check."
	default:
		p.Lead = "Access is currently allowed."
		p.Detail = "If you were redirected here, a rule change is still propagating. Retry in a moment."
	}
	if st.Reason != "" {
		p.Detail += " Last report: " + st.Reason + "."
	}
	if !st.Timestamp.IsZero() {
		p.When = st.Timestamp.Format(time.RFC1123)
	}
	return p
}

var pageTmpl = template.Must(template.New("blocked").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
  body { font-family: -apple-system, "Segoe UI", sans-serif; background: #1b1d22; color: #e6e6e6;
         display: flex; align-items: center; justify-content: center; min-height: 100vh; margin: 0; }
  main { max-width: 32rem; padding: 2rem; text-align: center; }
  h1 { font-size: 1.4rem; margin-bottom: 0.5rem; }
  p  { color: #a8adb8; line-height: 1.5; }
  .when { font-size: 0.8rem; color: #6c7280; margin-top: 1.5rem; }
</style>
</head>
<body>
<main>
  <h1>{{.Lead}}</h1>
  <p>{{.Detail}}</p>
  {{if .When}}<p class="when">Last update: {{.When}}</p>{{end}}
</main>
</body>
</html>
`))
