package server

import (
	"encoding/json"
	"net/http"
)

// AdminHandler 运维端点：
// GET  /metrics       运行指标
// GET  /admin/config  当前可热更新的参数
// POST /admin/config  以 JSON 载荷更新部分字段
// GET  /healthz
func (h *Host) AdminHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", h.handleMetrics)
	mux.HandleFunc("/admin/config", h.handleAdminConfig)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

type adminConfig struct {
	SimulateDropProb *float64 `json:"simulateDropProb,omitempty"`
	MaxPayloadBytes  *int     `json:"maxPayloadBytes,omitempty"`
}

func (h *Host) handleAdminConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var cur adminConfig
		err := h.Do(r.Context(), func(h *Host) {
			drop, payload := h.dropProb, h.replicator.MaxPayload()
			cur = adminConfig{SimulateDropProb: &drop, MaxPayloadBytes: &payload}
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, cur)
	case http.MethodPost:
		var body adminConfig
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if body.SimulateDropProb != nil && (*body.SimulateDropProb < 0 || *body.SimulateDropProb > 1) {
			http.Error(w, "simulateDropProb must be within [0,1]", http.StatusBadRequest)
			return
		}
		if body.MaxPayloadBytes != nil && *body.MaxPayloadBytes < 0 {
			http.Error(w, "maxPayloadBytes must not be negative", http.StatusBadRequest)
			return
		}
		err := h.Do(r.Context(), func(h *Host) {
			if body.SimulateDropProb != nil {
				h.dropProb = *body.SimulateDropProb
			}
			if body.MaxPayloadBytes != nil {
				h.replicator.SetMaxPayload(*body.MaxPayloadBytes)
			}
			h.log.Infow("config updated", "drop", h.dropProb, "maxPayload", h.replicator.MaxPayload())
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]any{"ok": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleMetrics 指标由原子计数器读取，不经过主循环
func (h *Host) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"metrics": h.metrics.Snapshot(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
