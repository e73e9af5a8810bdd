// Package scan builds the unified device list the station works from:
// kernel disks with safety verdicts plus controller-attached drives with
// their resolved kernel paths.
package scan

import (
	"context"
	"errors"
	"fmt"

	"github.com/hwerner/sanistation/internal/blockdev"
	"github.com/hwerner/sanistation/internal/cache"
	"github.com/hwerner/sanistation/internal/device"
	"github.com/hwerner/sanistation/internal/resolve"
	"github.com/hwerner/sanistation/internal/safety"
	"github.com/hwerner/sanistation/internal/storcli"
)

// Options control one inventory refresh.
type Options struct {
	// IncludeSystem keeps kernel disks flagged is_system in the result.
	IncludeSystem bool
	// SudoPassword is the per-call elevated-privilege secret for the
	// controller tool. Never retained beyond the call.
	SudoPassword string
	// Refresh bypasses the short-lived display cache.
	Refresh bool
}

// Result is one refresh: a fresh device list plus whatever diagnostics the
// inventories produced. Kernel and controller enumeration are independent
// failure domains; one failing never suppresses the other's devices.
type Result struct {
	Devices  []device.Device
	Warnings []string
}

const (
	cacheKey = "scan:all"
	// controllersKey caches the adapter list on the slow tier: the set of
	// PCIe controllers does not change while the station runs, and skipping
	// the repeated `storcli show` keeps UI refresh loops cheap.
	controllersKey = "scan:controllers"
)

// controllerClient is the slice of the storcli client the scanner uses.
type controllerClient interface {
	ListControllers(ctx context.Context) ([]storcli.Controller, error)
	ListPhysicalDrives(ctx context.Context, controllerID int) ([]storcli.Drive, error)
}

// newClient is swapped out by tests.
var newClient = func(sudoPassword string) controllerClient {
	return storcli.New(sudoPassword)
}

// All performs a combined inventory refresh. Results are cached briefly for
// UI refresh loops; destructive calls never read this cache — they go
// through the target resolver, which re-derives everything.
func All(ctx context.Context, opts Options) Result {
	c := cache.Global()
	if !opts.Refresh {
		if cached, ok := c.Get(cacheKey).(Result); ok {
			return filterSystem(cached, opts.IncludeSystem)
		}
	}

	result := collect(ctx, opts)
	c.SetFast(cacheKey, result)
	return filterSystem(result, opts.IncludeSystem)
}

func collect(ctx context.Context, opts Options) Result {
	var result Result

	kernelInv := blockdev.ListKernelDisks()
	result.Warnings = append(result.Warnings, kernelInv.Warnings...)
	result.Devices = append(result.Devices, kernelInv.Disks...)

	controllerDrives, warnings := controllerDevices(ctx, opts.SudoPassword, kernelInv.Disks)
	result.Warnings = append(result.Warnings, warnings...)
	result.Devices = append(result.Devices, controllerDrives...)

	return result
}

// controllerDevices enumerates every controller's physical drives and
// enriches each with its resolved kernel path.
func controllerDevices(ctx context.Context, sudoPassword string, kernel []device.Device) ([]device.Device, []string) {
	client := newClient(sudoPassword)

	controllers, ok := cache.Global().Get(controllersKey).([]storcli.Controller)
	if !ok {
		var err error
		controllers, err = client.ListControllers(ctx)
		if err != nil {
			return nil, []string{controllerWarning(err, "controller listing")}
		}
		cache.Global().SetSlow(controllersKey, controllers)
	}

	var out []device.Device
	var warnings []string
	for _, ctrl := range controllers {
		drives, err := client.ListPhysicalDrives(ctx, ctrl.ID)
		if err != nil {
			warnings = append(warnings, controllerWarning(err, fmt.Sprintf("C%d PD LIST", ctrl.ID)))
			continue
		}
		for _, drive := range drives {
			out = append(out, toDevice(drive, kernel))
		}
	}
	return out, warnings
}

func toDevice(drive storcli.Drive, kernel []device.Device) device.Device {
	verdict := safety.ClassifyControllerAttached()
	label := fmt.Sprintf("C%d PD %s", drive.Controller, drive.EIDSlt)
	addr := device.ControllerSlot(drive.Controller, drive.Enclosure, drive.Slot)

	dev := device.Device{
		Label:        label,
		Addr:         addr,
		Path:         addr.Path,
		Size:         drive.Size,
		Model:        drive.Model,
		Serial:       drive.Serial,
		Transport:    "storcli:" + drive.Intf,
		IsSystem:     verdict.IsSystem,
		EraseAllowed: verdict.EraseAllowed,
	}

	if resolved, ok := resolve.Resolve(drive, kernel); ok {
		dev.ResolvedTarget = resolved
	}
	return dev
}

// controllerWarning renders a controller failure as a scan diagnostic.
// These replace the original station's global "last warning" side channel.
func controllerWarning(err error, context string) string {
	switch {
	case errors.Is(err, storcli.ErrToolNotFound):
		return "storcli not installed or not found"
	case errors.Is(err, storcli.ErrAuthFailed):
		return "storcli: sudo authentication failed (check the configured password)"
	case errors.Is(err, storcli.ErrCommandUnsupported):
		return fmt.Sprintf("storcli (%s): command not supported by firmware", context)
	default:
		return fmt.Sprintf("storcli error (%s): %v", context, err)
	}
}

func filterSystem(r Result, includeSystem bool) Result {
	if includeSystem {
		return r
	}
	filtered := Result{Warnings: r.Warnings}
	for _, dev := range r.Devices {
		if dev.Addr.IsKernel() && dev.IsSystem {
			continue
		}
		filtered.Devices = append(filtered.Devices, dev)
	}
	return filtered
}
