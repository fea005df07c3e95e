//go:build windows

package netbios

import (
	"fmt"

	"golang.org/x/sys/windows/registry"
	"golang.org/x/sys/windows/svc/eventlog"
)

// EventLogAudit writes audit entries through the Windows event log API
type EventLogAudit struct {
	log *eventlog.Log
}

// OpenEventLog registers the audit source under the System channel if needed
// and opens it for writing. Registration failure is ignored: on hosts where
// the source already exists or the key is not writable, Open alone is enough
// for the write to land (the log service falls back to a generic rendering).
func OpenEventLog() (*EventLogAudit, error) {
	registerAuditSource()

	l, err := eventlog.Open(AuditSource)
	if err != nil {
		return nil, fmt.Errorf("open event log source %s: %w", AuditSource, err)
	}
	return &EventLogAudit{log: l}, nil
}

// Info writes one informational entry
func (a *EventLogAudit) Info(eventID uint32, msg string) error {
	return a.log.Info(eventID, msg)
}

// Close releases the event log handle
func (a *EventLogAudit) Close() error {
	return a.log.Close()
}

// registerAuditSource creates the event source key under the System channel.
// eventlog.InstallAsEventCreate only registers under Application, and the
// audit contract names the System log, so the key is written directly.
func registerAuditSource() {
	path := `SYSTEM\CurrentControlSet\Services\EventLog\` + AuditChannel + `\` + AuditSource
	k, _, err := registry.CreateKey(registry.LOCAL_MACHINE, path, registry.SET_VALUE)
	if err != nil {
		return
	}
	defer k.Close()

	k.SetExpandStringValue("EventMessageFile", `%SystemRoot%\System32\EventCreate.exe`)
	k.SetDWordValue("TypesSupported", uint32(eventlog.Info|eventlog.Warning|eventlog.Error))
}
