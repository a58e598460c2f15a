package blockpage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testServer(status StatusFunc) *Server {
	return New("", status, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func render(t *testing.T, s *Server, path string) string {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	return rec.Body.String()
}

func TestPageDistinguishesAgentFromDisconnected(t *testing.T) {
	agent := testServer(func(context.Context) (Status, error) {
		return Status{
			Blocking:    true,
			Connected:   true,
			AgentActive: true,
			Reason:      "agent detected",
			Timestamp:   time.Unix(1700000000, 0),
		}, nil
	})
	body := render(t, agent, "/blocked")
	if !strings.Contains(body, "agent CLI is running") {
		t.Fatalf("agent page missing cause:\n%s", body)
	}
	if strings.Contains(body, "not connected") {
		t.Fatal("agent page must not claim a disconnected monitor")
	}

	down := testServer(func(context.Context) (Status, error) {
		return Status{Blocking: true, Connected: false}, nil
	})
	body = render(t, down, "/blocked")
	if !strings.Contains(body, "not connected") {
		t.Fatalf("disconnected page missing cause:\n%s", body)
	}
	if strings.Contains(body, "agent CLI is running") {
		t.Fatal("disconnected page must not claim agent activity")
	}
}

func TestStatusErrorRendersAsDisconnected(t *testing.T) {
	s := testServer(func(context.Context) (Status, error) {
		return Status{}, errors.New("controller unavailable")
	})
	body := render(t, s, "/")
	if !strings.Contains(body, "not connected") {
		t.Fatalf("error page should fall back to the disconnected story:\n%s", body)
	}
}

func TestAllowedStateStillRendersSomething(t *testing.T) {
	s := testServer(func(context.Context) (Status, error) {
		return Status{Blocking: false, Connected: true}, nil
	})
	body := render(t, s, "/blocked")
	if !strings.Contains(body, "currently allowed") {
		t.Fatalf("allow page:\n%s", body)
	}
}

func TestURLPointsAtBlockedPath(t *testing.T) {
	s := testServer(nil)
	if got := s.URL(); got != "http://127.0.0.1:8717/blocked" {
		t.Fatalf("URL = %q", got)
	}
}
