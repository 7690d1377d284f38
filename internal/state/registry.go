package state

import (
	"sync"
	"time"
)

// DeviceInfo 设备在线状态信息
type DeviceInfo struct {
	Status    string    `json:"status"`
	IP        string    `json:"ip,omitempty"`
	LastEvent string    `json:"last_event,omitempty"`
	LastSeen  time.Time `json:"last_seen"`
}

// DeviceRegistry 设备在线状态表
// 仅存内存，重启即丢失，依赖设备重新上报状态重建
type DeviceRegistry struct {
	mu      sync.RWMutex
	devices map[string]DeviceInfo
}

// NewDeviceRegistry 创建设备状态表
func NewDeviceRegistry() *DeviceRegistry {
	return &DeviceRegistry{devices: make(map[string]DeviceInfo)}
}

// UpdateStatus 更新设备状态（access/status 上报）
// 返回该设备是否为首次出现
func (r *DeviceRegistry) UpdateStatus(deviceID, status, ip string, seen time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, known := r.devices[deviceID]
	info.Status = status
	info.IP = ip
	info.LastSeen = seen
	r.devices[deviceID] = info
	return !known
}

// NoteEvent 记录设备事件（access/events 上报），设备视为在线
func (r *DeviceRegistry) NoteEvent(deviceID, eventType string, seen time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, known := r.devices[deviceID]
	info.LastEvent = eventType
	info.Status = "online"
	info.LastSeen = seen
	r.devices[deviceID] = info
	return !known
}

// Get 查询单个设备
func (r *DeviceRegistry) Get(deviceID string) (DeviceInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.devices[deviceID]
	return info, ok
}

// Snapshot 导出全部设备状态的副本
func (r *DeviceRegistry) Snapshot() map[string]DeviceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]DeviceInfo, len(r.devices))
	for id, info := range r.devices {
		out[id] = info
	}
	return out
}

// IDs 导出全部设备ID
func (r *DeviceRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.devices))
	for id := range r.devices {
		out = append(out, id)
	}
	return out
}

// Count 当前设备数量
func (r *DeviceRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}
