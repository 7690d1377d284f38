package models

// CommandKind 下行命令类型（封闭集合）
type CommandKind string

const (
	CommandOpenDoor           CommandKind = "open_door"
	CommandCloseDoor          CommandKind = "close_door"
	CommandOpenDoorScheduled  CommandKind = "open_door_sh"
	CommandCloseDoorScheduled CommandKind = "close_door_sh"
	CommandReboot             CommandKind = "reboot"
	CommandBeep               CommandKind = "beep"
)

// AccessRequestMessage access/requests 入站消息
// card_number 与 pin_code 应恰好存在其一
type AccessRequestMessage struct {
	RequestID  string `json:"request_id"`
	DeviceID   string `json:"device_id"`
	CardNumber string `json:"card_number,omitempty"`
	PinCode    string `json:"pin_code,omitempty"`
}

// ResponseUser 响应中附带的已解析用户
type ResponseUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AccessResponseMessage access/responses 出站消息
type AccessResponseMessage struct {
	RequestID string        `json:"request_id"`
	DeviceID  string        `json:"device_id"`
	Timestamp string        `json:"timestamp"`
	Success   bool          `json:"success"`
	Message   string        `json:"message"`
	User      *ResponseUser `json:"user,omitempty"`
}

// DeviceEventMessage access/events 入站消息
type DeviceEventMessage struct {
	DeviceID    string `json:"device_id"`
	EventType   string `json:"event_type"`
	Description string `json:"description,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// DeviceStatusMessage access/status 入站消息
type DeviceStatusMessage struct {
	DeviceID  string `json:"device_id"`
	Status    string `json:"status"`
	IP        string `json:"ip,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// CommandMessage access/commands 出站命令信封
type CommandMessage struct {
	Command   CommandKind `json:"command"`
	DeviceID  string      `json:"device_id"`
	Timestamp string      `json:"timestamp"`
	Count     int         `json:"count,omitempty"`
}

// CommandAckMessage 设备对命令的确认（access/responses 入站，仅记录日志）
type CommandAckMessage struct {
	DeviceID string `json:"device_id"`
	Command  string `json:"command,omitempty"`
	Result   string `json:"result,omitempty"`
	Message  string `json:"message,omitempty"`
}
