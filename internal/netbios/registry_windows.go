//go:build windows

package netbios

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows/registry"
)

const (
	netbtInterfacesPath = `SYSTEM\CurrentControlSet\Services\NetBT\Parameters\Interfaces`

	// Fixed class GUID for network adapters, constant for the lifetime of
	// this registry surface.
	adapterClassPath = `SYSTEM\CurrentControlSet\Control\Class\{4D36E972-E325-11CE-BFC1-08002BE10318}`

	netbiosOptionsValue = "NetbiosOptions"
)

// RegistryInterfaceStore reads and writes NetbiosOptions under the local
// NetBT Parameters\Interfaces key.
type RegistryInterfaceStore struct{}

// List enumerates all NetBT interface subkeys and their NetbiosOptions value
func (RegistryInterfaceStore) List() ([]RawInterface, error) {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, netbtInterfacesPath, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", netbtInterfacesPath, err)
	}
	defer k.Close()

	names, err := k.ReadSubKeyNames(-1)
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", netbtInterfacesPath, err)
	}

	ifaces := make([]RawInterface, 0, len(names))
	for _, name := range names {
		sub, err := registry.OpenKey(registry.LOCAL_MACHINE, netbtInterfacesPath+`\`+name, registry.QUERY_VALUE)
		if err != nil {
			return nil, fmt.Errorf("open interface key %s: %w", name, err)
		}

		val, _, err := sub.GetIntegerValue(netbiosOptionsValue)
		sub.Close()

		switch {
		case err == nil:
			ifaces = append(ifaces, RawInterface{Key: name, Setting: Setting(val), HasSetting: true})
		case errors.Is(err, registry.ErrNotExist):
			// Older OS variants and non-NetBIOS adapters lack the value
			ifaces = append(ifaces, RawInterface{Key: name})
		default:
			return nil, fmt.Errorf("read %s on %s: %w", netbiosOptionsValue, name, err)
		}
	}

	return ifaces, nil
}

// SetOption writes the NetbiosOptions DWORD on one interface subkey
func (RegistryInterfaceStore) SetOption(key string, value Setting) error {
	sub, err := registry.OpenKey(registry.LOCAL_MACHINE, netbtInterfacesPath+`\`+key, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("open interface key %s for write: %w", key, err)
	}
	defer sub.Close()

	if err := sub.SetDWordValue(netbiosOptionsValue, uint32(value)); err != nil {
		return fmt.Errorf("write %s: %w", netbiosOptionsValue, err)
	}
	return nil
}

// RegistryAdapterInventory reads adapter display metadata from the
// network-adapter class key.
type RegistryAdapterInventory struct{}

// List enumerates the class key subkeys. Individual unreadable subkeys (the
// "Properties" subkey is access-protected even for administrators) are
// skipped rather than failing the enumeration.
func (RegistryAdapterInventory) List() ([]Adapter, error) {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, adapterClassPath, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", adapterClassPath, err)
	}
	defer k.Close()

	names, err := k.ReadSubKeyNames(-1)
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", adapterClassPath, err)
	}

	adapters := make([]Adapter, 0, len(names))
	for _, name := range names {
		sub, err := registry.OpenKey(registry.LOCAL_MACHINE, adapterClassPath+`\`+name, registry.QUERY_VALUE)
		if err != nil {
			continue
		}

		var ad Adapter
		ad.InstanceID, _, _ = sub.GetStringValue("NetCfgInstanceId")
		ad.DriverDesc, _, _ = sub.GetStringValue("DriverDesc")
		ad.Provider, _, _ = sub.GetStringValue("ProviderName")
		ad.ComponentID, _, _ = sub.GetStringValue("ComponentId")
		sub.Close()

		if ad.InstanceID == "" {
			continue
		}
		adapters = append(adapters, ad)
	}

	return adapters, nil
}
