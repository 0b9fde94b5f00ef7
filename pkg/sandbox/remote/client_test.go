package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rhuss/codesmith/pkg/api"
)

func TestClient_Execute(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantErr    bool
		wantStatus string
		wantStdout string
	}{
		{
			name: "successful execution",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(ExecuteResponse{Status: StatusSuccess, Stdout: "42"})
			},
			wantStatus: StatusSuccess,
			wantStdout: "42",
		},
		{
			name: "execution error (non-zero exit)",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(ExecuteResponse{
					Status:   StatusError,
					Stderr:   "NameError: name 'x' is not defined",
					ExitCode: 1,
				})
			},
			wantStatus: StatusError,
		},
		{
			name: "sandbox at capacity (429)",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"at capacity"}`))
			},
			wantErr: true,
		},
		{
			name: "sandbox server error (500)",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":"internal error"}`))
			},
			wantErr: true,
		},
		{
			name: "invalid JSON response",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{invalid json`))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			resp, err := NewClient(5*time.Second).Execute(context.Background(), srv.URL, &ExecuteRequest{Code: "print(42)", Language: "Python"})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if resp.Stdout != tt.wantStdout {
				t.Errorf("stdout = %q, want %q", resp.Stdout, tt.wantStdout)
			}
		})
	}
}

func TestClient_AtCapacitySentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(time.Second).Execute(context.Background(), srv.URL, &ExecuteRequest{})
	if !errors.Is(err, ErrAtCapacity) {
		t.Errorf("err = %v, want ErrAtCapacity", err)
	}
}

func TestExecutor_ForwardsRequest(t *testing.T) {
	var got ExecuteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/execute" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(ExecuteResponse{Status: StatusSuccess, Stdout: "hello"})
	}))
	defer srv.Close()

	e := NewExecutor(StaticURL(srv.URL), nil, 10*time.Second)
	v := e.Execute(context.Background(), "print('hello')", api.LanguagePython)

	if !v.Success || v.Stdout != "hello" || v.State != api.ExecutionSucceeded {
		t.Errorf("verdict = %+v, want success with stdout hello", v)
	}
	if got.Language != "Python" || got.TimeoutSeconds != 10 || got.TimeoutMs != 10000 || got.Code != "print('hello')" {
		t.Errorf("request = %+v", got)
	}
}

func TestNewExecuteRequestTimeout(t *testing.T) {
	tests := []struct {
		timeout     time.Duration
		wantMs      int64
		wantSeconds int
	}{
		{0, 0, 0},
		{300 * time.Millisecond, 300, 1},
		{time.Second, 1000, 1},
		{1500 * time.Millisecond, 1500, 2},
		{10 * time.Second, 10000, 10},
	}
	for _, tt := range tests {
		t.Run(tt.timeout.String(), func(t *testing.T) {
			req := NewExecuteRequest("x", api.LanguagePython, tt.timeout)
			if req.TimeoutMs != tt.wantMs || req.TimeoutSeconds != tt.wantSeconds {
				t.Errorf("timeout_ms = %d, timeout_seconds = %d, want %d, %d",
					req.TimeoutMs, req.TimeoutSeconds, tt.wantMs, tt.wantSeconds)
			}
			if req.Timeout() != tt.timeout {
				t.Errorf("Timeout() = %v, want %v", req.Timeout(), tt.timeout)
			}
		})
	}
}

func TestExecutor_DeadlineFromTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	e := NewExecutor(StaticURL(srv.URL), NewClient(time.Minute), 200*time.Millisecond)
	e.slack = 100 * time.Millisecond

	start := time.Now()
	v := e.Execute(context.Background(), "while True: pass", api.LanguagePython)

	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("took %v, want the 300ms executor deadline to end the request", elapsed)
	}
	if v.FailureReason != api.ReasonTimeout || v.State != api.ExecutionTimedOut {
		t.Errorf("verdict = %+v, want timed out", v)
	}
}

func TestExecutor_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	v := NewExecutor(StaticURL(url), NewClient(time.Second), time.Second).
		Execute(context.Background(), "print(1)", api.LanguagePython)

	if v.Success {
		t.Fatal("expected failure")
	}
	if !strings.HasPrefix(v.FailureReason, "sandbox unavailable: ") {
		t.Errorf("FailureReason = %q, want sandbox unavailable prefix", v.FailureReason)
	}
	if v.State != api.ExecutionFaulted {
		t.Errorf("State = %q, want faulted", v.State)
	}
}

type failingAcquirer struct{}

func (failingAcquirer) Acquire(context.Context) (string, func(), error) {
	return "", nil, errors.New("no sandbox template")
}

func TestExecutor_AcquireFailure(t *testing.T) {
	v := NewExecutor(failingAcquirer{}, nil, time.Second).
		Execute(context.Background(), "x", api.LanguageGo)

	if v.FailureReason != "sandbox unavailable: no sandbox template" {
		t.Errorf("FailureReason = %q", v.FailureReason)
	}
}

func TestExecutor_CallerCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	v := NewExecutor(StaticURL(srv.URL), nil, time.Second).Execute(ctx, "x", api.LanguagePython)
	if v.FailureReason != api.ReasonCancelled {
		t.Errorf("FailureReason = %q, want %q", v.FailureReason, api.ReasonCancelled)
	}
}

func TestResponseVerdictRoundTrip(t *testing.T) {
	tests := []api.ExecutionVerdict{
		{Success: true, Stdout: "ok", State: api.ExecutionSucceeded},
		{FailureReason: "boom", Stderr: "boom", ExitCode: 1, State: api.ExecutionFaulted},
		{FailureReason: api.ReasonTimeout, ExitCode: -1, State: api.ExecutionTimedOut},
		api.Unsupported(),
	}
	for _, want := range tests {
		t.Run(string(want.State), func(t *testing.T) {
			got := NewExecuteResponse(want).Verdict()
			if got != want {
				t.Errorf("Verdict() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestResponseVerdictDefaults(t *testing.T) {
	v := (&ExecuteResponse{Status: StatusError, ExitCode: 2}).Verdict()
	if v.FailureReason != "exit status 2" {
		t.Errorf("FailureReason = %q, want exit status 2", v.FailureReason)
	}
	v = (&ExecuteResponse{Status: StatusTimeout}).Verdict()
	if v.FailureReason != api.ReasonTimeout {
		t.Errorf("FailureReason = %q, want timeout", v.FailureReason)
	}
}
