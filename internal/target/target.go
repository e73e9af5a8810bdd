// Package target is the chokepoint every destructive-tool runner calls
// immediately before building a command. It re-derives the target path from
// live inventories on every call; a cached or forged resolution can never
// reach a wipe command.
package target

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hwerner/sanistation/internal/blockdev"
	"github.com/hwerner/sanistation/internal/device"
	"github.com/hwerner/sanistation/internal/resolve"
	"github.com/hwerner/sanistation/internal/storcli"
)

var (
	// ErrInvalidTarget marks a kernel path outside the /dev/sd* //dev/nvme*
	// shape. Kernel devices are rejected upstream by the erase_allowed
	// fence; this is the independent second layer.
	ErrInvalidTarget = errors.New("target is not a concrete kernel block device")

	// ErrUnresolvableControllerTarget marks a controller-attached drive that
	// could not be re-resolved to a kernel path right now. Fatal to the
	// specific destructive call, never worked around with a best guess.
	ErrUnresolvableControllerTarget = errors.New("controller target does not resolve to a kernel device")
)

// Target is a freshly validated erase target.
type Target struct {
	// Path is the concrete kernel device path.
	Path string
	// MappingHint documents a controller-to-kernel translation for the
	// audit log; empty for directly addressed devices.
	MappingHint string
}

// Resolver re-validates devices against fresh inventory snapshots. The
// snapshot functions default to the live system and are swappable for
// tests.
type Resolver struct {
	Kernel     func() []device.Device
	Controller func(ctx context.Context, controllerID int) ([]storcli.Drive, error)
}

// NewResolver builds a resolver over the live system, querying controllers
// with the given per-call sudo password.
func NewResolver(sudoPassword string) *Resolver {
	client := storcli.New(sudoPassword)
	return &Resolver{
		Kernel: func() []device.Device {
			return blockdev.ListKernelDisks().Disks
		},
		Controller: client.ListPhysicalDrives,
	}
}

// Resolve returns the validated kernel path for a device, or a typed
// failure. Any ResolvedTarget already present on the record is ignored.
func (r *Resolver) Resolve(ctx context.Context, d device.Device) (Target, error) {
	if d.Addr.IsKernel() {
		path := d.Addr.Path
		if !isKernelShape(path) {
			return Target{}, fmt.Errorf("%w: %q", ErrInvalidTarget, path)
		}
		return Target{Path: path}, nil
	}

	virtual := d.Addr.Path

	drive, err := r.freshControllerDrive(ctx, d)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %s: %v", ErrUnresolvableControllerTarget, virtual, err)
	}

	resolved, ok := resolve.Resolve(drive, r.Kernel())
	if !ok || !isKernelShape(resolved) {
		return Target{}, fmt.Errorf("%w: %s", ErrUnresolvableControllerTarget, virtual)
	}

	return Target{
		Path:        resolved,
		MappingHint: fmt.Sprintf("MegaRAID Mapping: %s → %s", virtual, resolved),
	}, nil
}

// freshControllerDrive locates the drive in a fresh controller snapshot by
// its enclosure:slot address. When the snapshot no longer lists the slot,
// the record's own identity attributes are used so resolution still runs
// against the fresh kernel inventory — but without any OS-path hint, since
// a stale record must not smuggle in a path.
func (r *Resolver) freshControllerDrive(ctx context.Context, d device.Device) (storcli.Drive, error) {
	drives, err := r.Controller(ctx, d.Addr.Controller)
	if err != nil {
		return storcli.Drive{}, err
	}
	for _, drive := range drives {
		if drive.VirtualPath() == d.Addr.Path {
			return drive, nil
		}
	}

	key := d.Identity()
	return storcli.Drive{
		Controller: d.Addr.Controller,
		Enclosure:  d.Addr.Enclosure,
		Slot:       d.Addr.Slot,
		EIDSlt:     d.Addr.EIDSlt(),
		Size:       key.Size,
		Model:      key.Model,
		Serial:     key.Serial,
	}, nil
}

func isKernelShape(path string) bool {
	return strings.HasPrefix(path, "/dev/sd") || strings.HasPrefix(path, "/dev/nvme")
}
