package state

import "sync"

// Mode 紧急模式（三态互斥，任一时刻恰好一个为真）
type Mode string

const (
	ModeNormal     Mode = "normal"
	ModeEvacuation Mode = "evacuation"
	ModeLockdown   Mode = "lockdown"
)

// EmergencyState 进程级紧急状态
// 仅由操作员显式切换，协议处理器与决策引擎在每次请求时读取
type EmergencyState struct {
	mu   sync.RWMutex
	mode Mode
}

// NewEmergencyState 创建紧急状态（初始为 normal）
func NewEmergencyState() *EmergencyState {
	return &EmergencyState{mode: ModeNormal}
}

// Set 切换紧急模式
func (s *EmergencyState) Set(mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
}

// Mode 当前模式
func (s *EmergencyState) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// IsLockdown 是否处于封锁模式
func (s *EmergencyState) IsLockdown() bool {
	return s.Mode() == ModeLockdown
}

// IsEvacuation 是否处于疏散模式
func (s *EmergencyState) IsEvacuation() bool {
	return s.Mode() == ModeEvacuation
}

// Snapshot 导出三个互斥标志（用于状态广播与API响应）
func (s *EmergencyState) Snapshot() map[string]bool {
	mode := s.Mode()
	return map[string]bool{
		"normal":     mode == ModeNormal,
		"evacuation": mode == ModeEvacuation,
		"lockdown":   mode == ModeLockdown,
	}
}
