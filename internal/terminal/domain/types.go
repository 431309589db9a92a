package domain

// ConnectionState is the bind state of the terminal service handle
type ConnectionState int

const (
	StateUnbound ConnectionState = iota
	StateBinding
	StateBound
)

// String returns the string representation of the connection state
func (s ConnectionState) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateBinding:
		return "binding"
	case StateBound:
		return "bound"
	default:
		return "unknown"
	}
}

// EventKind selects which lifecycle notifications a listener receives
type EventKind string

const (
	EventStatus EventKind = "status"
	EventError  EventKind = "error"
)

// Valid reports whether k is a kind listeners can subscribe to
func (k EventKind) Valid() bool {
	return k == EventStatus || k == EventError
}

// Event is a lifecycle notification delivered to listeners
type Event struct {
	Kind    EventKind
	Message string
}

// Component identifies the terminal service to bind to, as <package>/<class>
type Component string

// DeviceInfo describes the terminal hardware
type DeviceInfo struct {
	Serial   string `json:"serial"`
	Model    string `json:"model"`
	Firmware string `json:"firmware"`
}

const unknownDeviceValue = "Unknown"

// WithDefaults reports missing fields as "Unknown"
func (d DeviceInfo) WithDefaults() DeviceInfo {
	if d.Serial == "" {
		d.Serial = unknownDeviceValue
	}
	if d.Model == "" {
		d.Model = unknownDeviceValue
	}
	if d.Firmware == "" {
		d.Firmware = unknownDeviceValue
	}
	return d
}
