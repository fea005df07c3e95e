//go:build windows

package netbios

import (
	"go.uber.org/zap"
)

// NewLocalAction builds an Action wired to the local host's registry and
// event log. The returned close function releases the event log handle.
func NewLocalAction(host string, logger *zap.Logger) (*Action, func(), error) {
	audit, err := OpenEventLog()
	if err != nil {
		return nil, nil, err
	}

	a := &Action{
		Host:       host,
		Interfaces: RegistryInterfaceStore{},
		Adapters:   RegistryAdapterInventory{},
		Audit:      audit,
		Logger:     logger,
	}
	return a, func() { audit.Close() }, nil
}
