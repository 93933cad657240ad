package models

// MessageKind is the closed set of inbound message types, decoded once at
// the router boundary from the topic suffix.
type MessageKind int

const (
	KindUnknown MessageKind = iota
	KindRegister
	KindData
	KindStatus
	KindCompute
	KindSync
)

// String returns the topic suffix for the kind.
func (k MessageKind) String() string {
	switch k {
	case KindRegister:
		return "register"
	case KindData:
		return "data"
	case KindStatus:
		return "status"
	case KindCompute:
		return "compute"
	case KindSync:
		return "sync"
	default:
		return "unknown"
	}
}

// StatusUpdate is the payload of a device status message. Battery and
// firmware are optional; absent fields leave the registry record untouched.
type StatusUpdate struct {
	Battery         *int   `json:"battery,omitempty"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
}

// ComputeRequest asks the engine to run edge analytics on demand over a
// sensor's current window.
type ComputeRequest struct {
	Sensor string `json:"sensor"`
}
