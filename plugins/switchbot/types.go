package switchbot

// Device is an entry of the vendor device list.
type Device struct {
	ID           string
	Name         string
	Type         string
	HubID        string
	CloudService bool
	Remote       bool
}

// Snapshot is a device status report, polled or pushed. Absent fields are nil.
type Snapshot struct {
	DeviceID      string  `json:"deviceId,omitempty"`
	DeviceMac     string  `json:"deviceMac,omitempty"`
	DeviceType    string  `json:"deviceType,omitempty"`
	WorkingStatus *string `json:"workingStatus,omitempty"`
	OnlineStatus  string  `json:"onlineStatus,omitempty"`
	Battery       *int    `json:"battery,omitempty"`
}

// Command is a vendor device command name.
type Command string

const (
	CommandStart Command = "start"
	CommandStop  Command = "stop"
	CommandDock  Command = "dock"
)

var vacuumTypes = map[string]bool{
	"K10+":                          true,
	"K10+ Pro":                      true,
	"Robot Vacuum Cleaner S1":       true,
	"Robot Vacuum Cleaner S1 Plus":  true,
	"Robot Vacuum Cleaner S10":      true,
	"K10+ Pro Combo":                true,
	"Robot Vacuum Cleaner K10+ Pro": true,
}

// IsVacuum reports whether the device type is a robot vacuum.
func (d Device) IsVacuum() bool {
	return !d.Remote && vacuumTypes[d.Type]
}
