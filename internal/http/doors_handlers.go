package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"firo-access/internal/models"
)

// Doors /api/doors 与 /api/doors/{id}[/command]
func (h *Handler) Doors(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/doors"), "/")

	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			doors, err := h.doors.ListDoors(r.Context())
			if err != nil {
				writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to list doors: %v", err)))
				return
			}
			writeJSON(w, http.StatusOK, Ok(doors))
		case http.MethodPost:
			var door models.Door
			if err := readBodyJSON(r, maxBodyBytes, &door); err != nil {
				writeJSON(w, http.StatusOK, Fail("invalid request body"))
				return
			}
			if door.DeviceID == "" {
				writeJSON(w, http.StatusOK, Fail("device_id is required"))
				return
			}
			if door.Status == "" {
				door.Status = models.StatusActive
			}
			if err := h.doors.CreateDoor(r.Context(), &door); err != nil {
				writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to create door: %v", err)))
				return
			}
			h.audit.Record(r.Context(), door.DeviceID, "", "Door created")
			writeJSON(w, http.StatusOK, Ok(door))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	parts := strings.Split(rest, "/")
	deviceID := parts[0]

	if len(parts) == 2 && parts[1] == "command" {
		h.doorCommand(w, r, deviceID)
		return
	}

	switch r.Method {
	case http.MethodGet:
		door, err := h.doors.GetDoor(r.Context(), deviceID)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to get door: %v", err)))
			return
		}
		if door == nil {
			writeJSON(w, http.StatusOK, Fail("door not found"))
			return
		}
		writeJSON(w, http.StatusOK, Ok(door))
	case http.MethodPut:
		var door models.Door
		if err := readBodyJSON(r, maxBodyBytes, &door); err != nil {
			writeJSON(w, http.StatusOK, Fail("invalid request body"))
			return
		}
		door.DeviceID = deviceID
		if err := h.doors.UpdateDoor(r.Context(), &door); err != nil {
			writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to update door: %v", err)))
			return
		}
		writeJSON(w, http.StatusOK, Ok(door))
	case http.MethodDelete:
		if err := h.doors.DeleteDoor(r.Context(), deviceID); err != nil {
			writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to delete door: %v", err)))
			return
		}
		h.audit.Record(r.Context(), deviceID, "", "Door deleted")
		writeJSON(w, http.StatusOK, Ok(map[string]any{"deleted": deviceID}))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// doorCommand POST /api/doors/{id}/command {command, count?}
// 紧急状态约束：封锁期间禁止开门，疏散期间禁止关门
func (h *Handler) doorCommand(w http.ResponseWriter, r *http.Request, deviceID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Command string `json:"command"`
		Count   int    `json:"count"`
	}
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}

	var err error
	switch models.CommandKind(body.Command) {
	case models.CommandOpenDoor:
		if h.emergency.IsLockdown() {
			writeJSON(w, http.StatusOK, Fail("cannot open doors during lockdown"))
			return
		}
		err = h.commander.OpenDoor(deviceID)
	case models.CommandCloseDoor:
		if h.emergency.IsEvacuation() {
			writeJSON(w, http.StatusOK, Fail("cannot close doors during evacuation"))
			return
		}
		err = h.commander.CloseDoor(deviceID)
	case models.CommandOpenDoorScheduled:
		if h.emergency.IsLockdown() {
			writeJSON(w, http.StatusOK, Fail("cannot open doors during lockdown"))
			return
		}
		err = h.commander.OpenDoorScheduled(deviceID)
	case models.CommandCloseDoorScheduled:
		if h.emergency.IsEvacuation() {
			writeJSON(w, http.StatusOK, Fail("cannot close doors during evacuation"))
			return
		}
		err = h.commander.CloseDoorScheduled(deviceID)
	case models.CommandReboot:
		err = h.commander.Reboot(deviceID)
	case models.CommandBeep:
		err = h.commander.Beep(deviceID, body.Count)
	default:
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("unknown command: %s", body.Command)))
		return
	}

	if err != nil {
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("command failed: %v", err)))
		return
	}

	h.audit.Record(r.Context(), deviceID, "operator", fmt.Sprintf("Manual command: %s", body.Command))
	writeJSON(w, http.StatusOK, Ok(map[string]any{"device_id": deviceID, "command": body.Command}))
}

// Devices GET /api/devices 在线状态表快照
func (h *Handler) Devices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, Ok(h.registry.Snapshot()))
}
