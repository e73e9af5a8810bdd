// Package device defines the unified drive record shared by the kernel
// and controller inventories and consumed by the UI and tool runners.
package device

import (
	"fmt"
	"sort"
	"strings"
)

// UnknownIdentity is the sentinel for a serial or model that could not be
// recovered from any source. An empty string would collide with other
// unknowns during matching, so the sentinel is used instead.
const UnknownIdentity = "UNKNOWN"

// AddressKind distinguishes the two naming spaces a drive can live in.
type AddressKind int

const (
	// KernelAddress is a drive directly visible to the kernel (/dev/sdX,
	// /dev/nvmeXnY).
	KernelAddress AddressKind = iota
	// ControllerAddress is a physical drive behind a RAID/HBA controller,
	// addressed by controller/enclosure/slot.
	ControllerAddress
)

// Address is the tagged addressing variant of a Device.
type Address struct {
	Kind AddressKind

	// Path is the kernel device path for KernelAddress, or the virtual
	// placeholder path (/dev/megaraid/<c>/<eid>:<slot>) for ControllerAddress.
	Path string

	// Controller/Enclosure/Slot are set for ControllerAddress only.
	Controller int
	Enclosure  int
	Slot       int
}

// KernelPath builds a kernel addressing variant.
func KernelPath(path string) Address {
	return Address{Kind: KernelAddress, Path: path}
}

// ControllerSlot builds a controller-attached addressing variant with its
// synthesized virtual placeholder path.
func ControllerSlot(controller, enclosure, slot int) Address {
	return Address{
		Kind:       ControllerAddress,
		Path:       fmt.Sprintf("/dev/megaraid/%d/%d:%d", controller, enclosure, slot),
		Controller: controller,
		Enclosure:  enclosure,
		Slot:       slot,
	}
}

// EIDSlt returns the controller-native enclosure:slot address.
func (a Address) EIDSlt() string {
	return fmt.Sprintf("%d:%d", a.Enclosure, a.Slot)
}

// IsKernel reports whether the address lives in the kernel naming space.
func (a Address) IsKernel() bool {
	return a.Kind == KernelAddress
}

// Device is the unified record exposed to the rest of the station. A fresh
// list is built on every inventory refresh; nothing here survives between
// scans except what callers choose to merge back in.
type Device struct {
	Label     string   `json:"label"`
	Addr      Address  `json:"-"`
	Path      string   `json:"path"`
	Size      string   `json:"size"`
	Model     string   `json:"model"`
	Serial    string   `json:"serial"`
	Transport string   `json:"transport"`

	// Mountpoints is the union over the device and all partition children.
	Mountpoints []string `json:"mountpoints,omitempty"`

	IsSystem     bool `json:"is_system"`
	EraseAllowed bool `json:"erase_allowed"`

	// ResolvedTarget is the kernel path a controller-attached drive was
	// mapped to at scan time. Never trusted by destructive calls; those
	// re-resolve from live inventories.
	ResolvedTarget string `json:"resolved_target,omitempty"`
}

// IdentityKey is the cross-naming-space lookup key. Serial is authoritative
// when present and not the sentinel; (Model, Size) is the fallback composite.
type IdentityKey struct {
	Serial string
	Model  string
	Size   string
}

// Identity returns the device's resolution key with identity fields trimmed.
func (d Device) Identity() IdentityKey {
	return IdentityKey{
		Serial: strings.TrimSpace(d.Serial),
		Model:  strings.TrimSpace(d.Model),
		Size:   strings.TrimSpace(d.Size),
	}
}

// HasSerial reports whether the key carries a usable serial.
func (k IdentityKey) HasSerial() bool {
	return k.Serial != "" && !strings.EqualFold(k.Serial, UnknownIdentity)
}

// NormalizeMountpoints sorts and de-duplicates a mountpoint set.
func NormalizeMountpoints(points map[string]struct{}) []string {
	if len(points) == 0 {
		return nil
	}
	out := make([]string, 0, len(points))
	for mp := range points {
		out = append(out, mp)
	}
	sort.Strings(out)
	return out
}

// OrUnknown maps empty identity values to the sentinel.
func OrUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return UnknownIdentity
	}
	return strings.TrimSpace(s)
}
