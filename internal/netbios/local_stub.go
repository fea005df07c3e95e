//go:build !windows

package netbios

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"
)

// NewLocalAction is a stub for non-Windows platforms. The NetBT registry
// surface only exists on Windows; from other platforms this tool can still
// dispatch to remote Windows hosts, it just cannot enforce locally.
func NewLocalAction(host string, logger *zap.Logger) (*Action, func(), error) {
	return nil, nil, fmt.Errorf("local NetBIOS enforcement not supported on platform: %s", runtime.GOOS)
}
