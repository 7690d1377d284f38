package httpapi

import (
	"fmt"
	"net/http"

	"firo-access/internal/models"
	"firo-access/internal/repository"

	"github.com/google/uuid"
)

// CheckAccess POST /api/check_access
// 管理面的决策试评估入口，走与设备请求完全相同的决策路径
// device_id 缺省时使用测试设备
func (h *Handler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		DeviceID   string `json:"device_id"`
		CardNumber string `json:"card_number"`
		PinCode    string `json:"pin_code"`
	}
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}
	if body.CardNumber == "" && body.PinCode == "" {
		writeJSON(w, http.StatusOK, Fail("card_number or pin_code is required"))
		return
	}
	if body.DeviceID == "" {
		body.DeviceID = "test_device"
	}

	req := &models.AccessRequestMessage{
		RequestID:  uuid.NewString(),
		DeviceID:   body.DeviceID,
		CardNumber: body.CardNumber,
		PinCode:    body.PinCode,
	}

	decision, err := h.decider.Decide(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("evaluation failed: %v", err)))
		return
	}

	result := map[string]any{
		"success": decision.Allowed,
		"message": decision.Message,
	}
	if decision.User != nil {
		result["user"] = models.ResponseUser{ID: decision.User.ID, Name: decision.User.Name}
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// Events GET /api/events?id=&message=&period=&limit=
// period 取 hour/today/week/month
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	filter := repository.EventsFilter{
		Identity: q.Get("id"),
		Message:  q.Get("message"),
		Period:   q.Get("period"),
		Limit:    parseInt(q.Get("limit"), 200),
	}

	events, err := h.events.List(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to list events: %v", err)))
		return
	}
	writeJSON(w, http.StatusOK, Ok(events))
}
