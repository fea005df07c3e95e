package netbios

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InterfaceStore reads and writes the NetBT per-interface registry state
type InterfaceStore interface {
	List() ([]RawInterface, error)
	SetOption(key string, value Setting) error
}

// AdapterInventory reads display metadata from the network-adapter class key
type AdapterInventory interface {
	List() ([]Adapter, error)
}

// AuditLog writes informational entries to the host-local event log
type AuditLog interface {
	Info(eventID uint32, msg string) error
}

// ParseError reports a registry subkey whose name does not embed a UUID.
// This is a deliberate hard failure: a malformed interface key means the
// registry location does not look the way this tool assumes, and silently
// skipping it could leave NetBIOS enabled on a real adapter.
type ParseError struct {
	Key string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("no interface UUID in registry key %q", e.Key)
}

var uuidPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// Action force-disables NetBIOS on every NetBIOS-capable interface of the
// local host. It is self-contained: all state it touches is host-local, so
// it runs identically in-process and at the far end of a remote channel.
type Action struct {
	Host       string
	Interfaces InterfaceStore
	Adapters   AdapterInventory
	Audit      AuditLog

	// Explicit on-error policies for the two side channels. The defaults
	// (zero value PolicyBestEffort) match the documented contract: missing
	// adapter metadata and failed audit writes never abort enforcement.
	MetadataPolicy Policy
	AuditPolicy    Policy

	Logger *zap.Logger
}

// Execute runs the enforcement pass and returns its outcome. A registry
// access failure or an unparseable interface key fails the whole action for
// this host; interfaces already processed stay in the partial Changed list.
func (a *Action) Execute(ctx context.Context) Result {
	res := Result{Host: a.Host}

	raw, err := a.Interfaces.List()
	if err != nil {
		res.Err = fmt.Sprintf("enumerate NetBT interfaces: %v", err)
		return res
	}

	adapters, err := a.Adapters.List()
	if err != nil {
		if a.MetadataPolicy == PolicyFail {
			res.Err = fmt.Sprintf("enumerate adapter class: %v", err)
			return res
		}
		a.Logger.Warn("Adapter metadata unavailable, audit descriptions will be sparse",
			zap.Error(err))
		adapters = nil
	}

	for _, iface := range raw {
		if err := ctx.Err(); err != nil {
			res.Err = err.Error()
			return res
		}

		// Adapters without the NetbiosOptions value are not NetBIOS-capable
		// and must never be written.
		if !iface.HasSetting {
			a.Logger.Debug("Skipping interface without NetbiosOptions value",
				zap.String("key", iface.Key))
			continue
		}

		if err := a.Interfaces.SetOption(iface.Key, SettingDisabled); err != nil {
			res.Err = fmt.Sprintf("set NetbiosOptions on %s: %v", iface.Key, err)
			return res
		}

		id, err := extractInterfaceID(iface.Key)
		if err != nil {
			res.Err = err.Error()
			return res
		}

		changed := Interface{
			ID:       id,
			Previous: iface.Setting,
			Setting:  SettingDisabled,
		}

		adapter, matched := matchAdapter(adapters, id)
		if matched {
			changed.DisplayName = adapter.DriverDesc
			changed.Provider = adapter.Provider
		}

		// The mutation above is already applied; the audit entry comes second
		// and its failure does not undo or discount the change.
		desc := AuditPrefix + adapter.DriverDesc + " (" + adapter.InstanceID + ")"
		if err := a.Audit.Info(AuditEventID, desc); err != nil {
			if a.AuditPolicy == PolicyFail {
				res.Err = fmt.Sprintf("write audit entry for %s: %v", id, err)
				return res
			}
			a.Logger.Warn("Audit write failed, change still applied",
				zap.String("interface_id", id),
				zap.Error(err))
		}

		a.Logger.Info("NetBIOS force-disabled",
			zap.String("interface_id", id),
			zap.String("display_name", changed.DisplayName),
			zap.Uint32("previous", uint32(changed.Previous)))

		res.Changed = append(res.Changed, changed)
	}

	res.OK = true
	return res
}

// extractInterfaceID pulls the UUID out of a NetBT interface subkey name
// (e.g. "Tcpip_{A9FD5C7B-2C89-4A3F-AE24-F1B70F2C1D36}") and validates it.
func extractInterfaceID(key string) (string, error) {
	m := uuidPattern.FindString(key)
	if m == "" {
		return "", &ParseError{Key: key}
	}
	if _, err := uuid.Parse(m); err != nil {
		return "", &ParseError{Key: key}
	}
	return m, nil
}

// matchAdapter finds the adapter whose NetCfgInstanceId contains the given
// interface UUID. The comparison is a case-insensitive containment check:
// instance IDs in the class key carry surrounding braces, the NetBT subkey
// UUID does not.
func matchAdapter(adapters []Adapter, id string) (Adapter, bool) {
	needle := strings.ToLower(id)
	for _, ad := range adapters {
		if strings.Contains(strings.ToLower(ad.InstanceID), needle) {
			return ad, true
		}
	}
	return Adapter{}, false
}
