package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/haasonsaas/callflow/internal/orchestrator"
	"github.com/haasonsaas/callflow/internal/telephony"
)

// maxWebhookBody caps webhook deliveries. Provider batches are small; a
// megabyte of headroom is generous.
const maxWebhookBody = 1 << 20

// handleWebhook ingests provider events. The only 400 is an unparseable
// body; an empty batch or events we choose to skip still get a 200 so the
// provider is never retried into a loop.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	result, err := telephony.ParseBatch(body, s.logger.Slog())
	if err != nil {
		s.logger.Warn(r.Context(), "unparseable webhook body", "error", err)
		http.Error(w, "malformed event body", http.StatusBadRequest)
		return
	}

	// Subscription handshake: echo the validation code and nothing else.
	if result.ValidationCode != "" {
		writeJSON(w, http.StatusOK, map[string]string{
			"validationResponse": result.ValidationCode,
		})
		return
	}

	for _, ev := range result.Events {
		s.orch.HandleEvent(r.Context(), ev)
	}
	w.WriteHeader(http.StatusOK)
}

type placeCallRequest struct {
	Phone string `json:"phone"`
}

type placeCallResponse struct {
	CallID string `json:"call_id"`
}

// handlePlaceCall starts an outbound call to a registered patient.
func (s *Server) handlePlaceCall(w http.ResponseWriter, r *http.Request) {
	var req placeCallRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if req.Phone == "" {
		http.Error(w, "phone is required", http.StatusBadRequest)
		return
	}

	callID, err := s.orch.PlaceCall(r.Context(), req.Phone)
	if err != nil {
		if errors.Is(err, orchestrator.ErrUnknownPatient) {
			http.Error(w, "no patient record for phone number", http.StatusNotFound)
			return
		}
		s.logger.Error(r.Context(), "call placement failed", "error", err)
		http.Error(w, "call placement failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusCreated, placeCallResponse{CallID: callID})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.orch.Store().Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
