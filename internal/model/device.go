package model

// Device 是 Nautobot 设备记录在预览结果中的投影。
// 只保留过滤和展示需要的字段，其余字段在客户端层就被丢弃。
type Device struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Location     string            `json:"location"`
	Role         string            `json:"role"`
	Status       string            `json:"status"`
	DeviceType   string            `json:"device_type"`
	Manufacturer string            `json:"manufacturer"`
	Platform     string            `json:"platform"`
	PrimaryIP    string            `json:"primary_ip,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
}
