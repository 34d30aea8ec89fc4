package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/XPrime17/moltworker/internal/supervisor"
)

func healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// statusResponse describes the gateway as the supervisor currently sees it.
type statusResponse struct {
	Running   bool                          `json:"running"`
	ProcessID string                        `json:"process_id,omitempty"`
	Command   string                        `json:"command,omitempty"`
	Status    string                        `json:"status,omitempty"`
	Version   supervisor.VersionCheckResult `json:"version"`
}

func (t *Transport) statusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{
			Version: t.sup.CheckVersion(r.Context(), t.sandbox, t.cfg),
		}
		if proc := t.sup.FindExisting(r.Context(), t.sandbox); proc != nil {
			resp.Running = true
			resp.ProcessID = proc.ID()
			resp.Command = proc.Command()
			resp.Status = string(proc.Status())
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

func (t *Transport) journalHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if t.journal == nil {
			writeError(w, http.StatusNotFound, "journal not configured")
			return
		}
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}
		events, err := t.journal.List(r.Context(), limit)
		if err != nil {
			t.logger.Error("journal query failed", "error", err)
			writeError(w, http.StatusInternalServerError, "journal query failed")
			return
		}
		if events == nil {
			events = []supervisor.Event{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": events})
	})
}

// lifecycleResponse reports the outcome of an ensure or restart call.
type lifecycleResponse struct {
	ProcessID string `json:"process_id"`
	Command   string `json:"command"`
}

func (t *Transport) ensureHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proc, err := t.sup.Ensure(r.Context(), t.sandbox, t.cfg)
		if err != nil {
			t.writeLifecycleError(w, "ensure", err)
			return
		}
		writeJSON(w, http.StatusOK, lifecycleResponse{
			ProcessID: proc.ID(),
			Command:   proc.Command(),
		})
	})
}

func (t *Transport) restartHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proc, err := t.sup.Restart(r.Context(), t.sandbox, t.cfg)
		if err != nil {
			t.writeLifecycleError(w, "restart", err)
			return
		}
		writeJSON(w, http.StatusOK, lifecycleResponse{
			ProcessID: proc.ID(),
			Command:   proc.Command(),
		})
	})
}

func (t *Transport) writeLifecycleError(w http.ResponseWriter, op string, err error) {
	t.logger.Error("gateway operation failed", "op", op, "error", err)
	// Lifecycle failures are gateway-side, not client-side.
	writeError(w, http.StatusBadGateway, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
