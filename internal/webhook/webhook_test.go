package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"hoppscotch-backup/internal/config"
	"hoppscotch-backup/internal/model"
)

func TestNewNotifierWithoutURL(t *testing.T) {
	n := NewNotifier(config.WebhookSettings{})
	if _, ok := n.(NopNotifier); !ok {
		t.Fatalf("NewNotifier without URL = %T, want NopNotifier", n)
	}
	// Must be callable without side effects.
	n.Enqueue(model.RunReport{})
	n.Stop()
}

func TestSenderDeliversSignedReport(t *testing.T) {
	received := make(chan *http.Request, 1)
	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- r
		bodies <- body
	}))
	defer srv.Close()

	s := NewSender(config.WebhookSettings{
		URL:            srv.URL,
		Secret:         "shared-secret",
		TimeoutSeconds: 5,
		MaxRetries:     0,
	})
	defer s.Stop()

	report := model.RunReport{
		Workspace:    "Hoppscotch",
		TeamID:       "team-1",
		RunTimestamp: "2026-08-23_14-05",
		Branch:       "backup/2026-08-23_14-05",
		FilesWritten: 3,
		Success:      true,
	}
	s.Enqueue(report)

	select {
	case req := <-received:
		body := <-bodies

		if ct := req.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		mac := hmac.New(sha256.New, []byte("shared-secret"))
		mac.Write(body)
		want := hex.EncodeToString(mac.Sum(nil))
		if got := req.Header.Get(HMACHeaderName); got != want {
			t.Errorf("signature = %q, want %q", got, want)
		}

		var decoded model.RunReport
		if err := json.Unmarshal(body, &decoded); err != nil {
			t.Fatalf("payload is not valid JSON: %v", err)
		}
		if decoded.Branch != report.Branch || decoded.FilesWritten != 3 || !decoded.Success {
			t.Errorf("decoded report = %+v", decoded)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("report was never delivered")
	}
}

func TestSenderOmitsSignatureWithoutSecret(t *testing.T) {
	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
	}))
	defer srv.Close()

	s := NewSender(config.WebhookSettings{URL: srv.URL, TimeoutSeconds: 5})
	defer s.Stop()
	s.Enqueue(model.RunReport{Workspace: "Hoppscotch"})

	select {
	case h := <-headers:
		if h.Get(HMACHeaderName) != "" {
			t.Error("signature header must be absent without a secret")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("report was never delivered")
	}
}

func TestStopDeliversQueuedReport(t *testing.T) {
	// One-shot mode enqueues the final report and stops immediately;
	// the report must still go out.
	var delivered int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&delivered, 1)
	}))
	defer srv.Close()

	for i := 0; i < 20; i++ {
		s := NewSender(config.WebhookSettings{URL: srv.URL, TimeoutSeconds: 5})
		s.Enqueue(model.RunReport{Workspace: "Hoppscotch", Success: true})
		s.Stop()
	}

	if got := atomic.LoadInt32(&delivered); got != 20 {
		t.Errorf("delivered = %d of 20 enqueue-then-stop reports", got)
	}
}

func TestSenderRetriesOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSender(config.WebhookSettings{URL: srv.URL, TimeoutSeconds: 5, MaxRetries: 1})
	defer s.Stop()
	s.Enqueue(model.RunReport{Workspace: "Hoppscotch"})

	deadline := time.After(10 * time.Second)
	for atomic.LoadInt32(&calls) < 2 {
		select {
		case <-deadline:
			t.Fatalf("calls = %d, want a retry after the first failure", atomic.LoadInt32(&calls))
		case <-time.After(50 * time.Millisecond):
		}
	}
}
