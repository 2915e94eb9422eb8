package model

// Connection is an active remote inet connection seen on the host
type Connection struct {
	RemoteIP   string `json:"remote_ip"`
	RemotePort uint32 `json:"remote_port"`
	Hostname   string `json:"hostname"`
}
