package netbios

// Setting is the tri-state NetbiosOptions registry value
type Setting uint32

const (
	// SettingDefault lets DHCP decide whether NetBIOS is used
	SettingDefault Setting = 0
	// SettingEnabled forces NetBIOS on
	SettingEnabled Setting = 1
	// SettingDisabled forces NetBIOS off regardless of DHCP hints
	SettingDisabled Setting = 2
)

// RawInterface is one subkey under the NetBT Parameters\Interfaces location,
// as read from the registry before any interpretation.
type RawInterface struct {
	Key        string  // subkey name, e.g. "Tcpip_{A9FD5C7B-...}"
	Setting    Setting // only meaningful when HasSetting is true
	HasSetting bool    // false for adapters without the NetbiosOptions value
}

// Interface is one NetBIOS-capable interface after enforcement, merged with
// any adapter metadata matched by instance ID.
type Interface struct {
	ID          string  `json:"id"` // UUID extracted from the registry subkey name
	Previous    Setting `json:"previous"`
	Setting     Setting `json:"setting"`
	DisplayName string  `json:"display_name,omitempty"`
	Provider    string  `json:"provider,omitempty"`
}

// Adapter is display metadata for one adapter under the network-adapter
// class key. InstanceID is the NetCfgInstanceId value used for the join.
type Adapter struct {
	InstanceID  string `json:"instance_id"`
	DriverDesc  string `json:"driver_desc"`
	Provider    string `json:"provider"`
	ComponentID string `json:"component_id"`
}

// Result is the per-host outcome of one enforcement action. It is produced
// once and never modified afterwards; the JSON form travels back over the
// remote-execution channel.
type Result struct {
	Host    string      `json:"host"`
	Changed []Interface `json:"changed"`
	OK      bool        `json:"ok"`
	Err     string      `json:"err,omitempty"`
}

// Policy is an explicit on-error policy for a fallible side channel of the
// action. It is always passed in by the caller; there is no ambient default.
type Policy int

const (
	// PolicyBestEffort logs the failure and continues with empty data
	PolicyBestEffort Policy = iota
	// PolicyFail turns the failure into a hard failure of the whole action
	PolicyFail
)

// Audit log constants. One informational entry is written per changed
// interface, to the host-local System log.
const (
	AuditSource  = "nbtoff"
	AuditChannel = "System"
	AuditEventID = 555
	AuditPrefix  = "NetBIOS over TCP/IP force-disabled on interface: "
)
