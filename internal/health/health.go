// Package health exposes liveness and readiness probes for the bot process.
//
//   - /healthz — liveness; 200 whenever the process serves HTTP.
//   - /readyz  — readiness; 200 only when every registered dependency check
//     (transcription server, mailbox paths, database, meeting bridge) passes.
//
// Probe bodies are JSON with a "status" field, the process uptime, and a
// per-check map including the probe latency, which makes a slow-but-passing
// dependency visible before it starts failing.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// checkTimeout caps a single dependency probe.
const checkTimeout = 5 * time.Second

// Check probes one dependency. It must respect context cancellation and
// return nil when the dependency is usable.
type Check func(ctx context.Context) error

// checkResult is the per-dependency portion of the readiness body.
type checkResult struct {
	Status  string `json:"status"`
	Latency string `json:"latency"`
	Error   string `json:"error,omitempty"`
}

// response is the JSON body for both probes.
type response struct {
	Status string                 `json:"status"`
	Uptime string                 `json:"uptime"`
	Checks map[string]checkResult `json:"checks,omitempty"`
}

// Handler serves the probe endpoints. Checks are fixed after Register is
// called; the Handler itself is safe for concurrent use.
type Handler struct {
	started time.Time
	names   []string
	checks  map[string]Check
}

// NewHandler creates an empty Handler. Add dependencies with [Handler.AddCheck].
func NewHandler() *Handler {
	return &Handler{
		started: time.Now(),
		checks:  make(map[string]Check),
	}
}

// AddCheck registers a named dependency probe. Checks run sequentially in
// registration order on every /readyz request.
func (h *Handler) AddCheck(name string, check Check) {
	if _, dup := h.checks[name]; !dup {
		h.names = append(h.names, name)
	}
	h.checks[name] = check
}

// Healthz always answers 200. A process that can serve HTTP is alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Status: "ok", Uptime: h.uptime()})
}

// Readyz answers 200 only when every registered check passes.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	resp := response{
		Status: "ok",
		Uptime: h.uptime(),
		Checks: make(map[string]checkResult, len(h.names)),
	}
	status := http.StatusOK

	for _, name := range h.names {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		start := time.Now()
		err := h.checks[name](ctx)
		latency := time.Since(start)
		cancel()

		cr := checkResult{Status: "ok", Latency: latency.Round(time.Millisecond).String()}
		if err != nil {
			cr.Status = "fail"
			cr.Error = err.Error()
			resp.Status = "fail"
			status = http.StatusServiceUnavailable
		}
		resp.Checks[name] = cr
	}

	writeJSON(w, status, resp)
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func (h *Handler) uptime() string {
	return time.Since(h.started).Round(time.Second).String()
}

// writeJSON encodes v with the given status code. On encoding failure it
// falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}

// FileWritable returns a Check verifying that path can be opened for append,
// used for the mailbox inbox and outbox.
func FileWritable(path string) Check {
	return func(context.Context) error {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		return f.Close()
	}
}

// HTTPReachable returns a Check issuing a GET against url, used for the
// transcription and synthesis servers. Any HTTP response counts as reachable;
// a 404 from a health-less server still proves the socket works.
func HTTPReachable(client *http.Client, url string) Check {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		return nil
	}
}
