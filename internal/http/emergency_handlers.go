package httpapi

import (
	"context"
	"net/http"

	"firo-access/internal/state"

	"go.uber.org/zap"
)

// Emergency /api/emergency/{status|evacuation|lockdown|normal}
func (h *Handler) Emergency(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Path[len("/api/emergency/"):]

	if action == "status" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, Ok(h.emergency.Snapshot()))
		return
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	switch action {
	case "evacuation":
		h.activateEvacuation(r.Context())
	case "lockdown":
		h.activateLockdown(r.Context())
	case "normal":
		h.clearEmergency(r.Context())
	default:
		writeJSON(w, http.StatusOK, Fail("unknown emergency action"))
		return
	}

	h.notifier.EmergencyStatus(h.emergency.Snapshot())
	writeJSON(w, http.StatusOK, Ok(h.emergency.Snapshot()))
}

// activateEvacuation 疏散：切换状态并打开所有已知的门
func (h *Handler) activateEvacuation(ctx context.Context) {
	h.emergency.Set(state.ModeEvacuation)
	h.audit.Record(ctx, "", "operator", "Emergency evacuation activated")
	h.notifier.EmergencyEvacuation(true)

	for _, deviceID := range h.knownDoorIDs(ctx) {
		if err := h.commander.OpenDoor(deviceID); err != nil {
			h.logger.Error("Evacuation open command failed",
				zap.String("device_id", deviceID), zap.Error(err))
		}
	}
}

// activateLockdown 封锁：切换状态并关闭所有已知的门
func (h *Handler) activateLockdown(ctx context.Context) {
	h.emergency.Set(state.ModeLockdown)
	h.audit.Record(ctx, "", "operator", "Emergency lockdown activated")
	h.notifier.EmergencyLockdown(true)

	for _, deviceID := range h.knownDoorIDs(ctx) {
		if err := h.commander.CloseDoor(deviceID); err != nil {
			h.logger.Error("Lockdown close command failed",
				zap.String("device_id", deviceID), zap.Error(err))
		}
	}
}

func (h *Handler) clearEmergency(ctx context.Context) {
	wasEvacuation := h.emergency.IsEvacuation()
	wasLockdown := h.emergency.IsLockdown()

	h.emergency.Set(state.ModeNormal)
	h.audit.Record(ctx, "", "operator", "Emergency state cleared")

	if wasEvacuation {
		h.notifier.EmergencyEvacuation(false)
	}
	if wasLockdown {
		h.notifier.EmergencyLockdown(false)
	}
}

// knownDoorIDs 合并数据库与在线表两个来源的门ID
func (h *Handler) knownDoorIDs(ctx context.Context) []string {
	seen := map[string]bool{}
	var ids []string

	doors, err := h.doors.ListDoors(ctx)
	if err != nil {
		h.logger.Error("Failed to list doors for emergency command", zap.Error(err))
	} else {
		for _, d := range doors {
			if !seen[d.DeviceID] {
				seen[d.DeviceID] = true
				ids = append(ids, d.DeviceID)
			}
		}
	}

	for _, id := range h.registry.IDs() {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	return ids
}
