// Package safety decides whether a block device may ever be handed to a
// destructive tool. The rules are deliberately categorical: kernel-direct
// devices are never erasable through this station, controller-exposed
// physical drives always are (the operator is assumed to have physically
// verified controller scope).
package safety

import "strings"

// ProtectedMountpoints are the mountpoints that mark a disk as a system
// disk. A mountpoint equal to one of these, or nested below one, protects
// the whole disk.
var ProtectedMountpoints = []string{"/", "/boot", "/boot/efi", "/usr", "/var", "/home"}

// BlockAttrs are the kernel-reported attributes the classifier operates on.
type BlockAttrs struct {
	Transport   string
	Removable   bool
	Hotplug     bool
	Mountpoints []string
}

// Verdict gates every destructive operation downstream.
type Verdict struct {
	IsSystem     bool
	EraseAllowed bool
}

// Classify returns the verdict for a kernel block device. EraseAllowed is
// always false here: onboard and removable disks are out of bounds no
// matter their mount state.
func Classify(a BlockAttrs) Verdict {
	v := Verdict{EraseAllowed: false}

	for _, mp := range a.Mountpoints {
		if IsProtectedMountpoint(mp) {
			v.IsSystem = true
			break
		}
	}

	tran := strings.ToLower(strings.TrimSpace(a.Transport))

	// Onboard SATA is always treated as a system disk, mounted or not.
	if tran == "sata" || tran == "ata" {
		v.IsSystem = true
		return v
	}

	if isInternalMainboardDisk(tran, a) {
		v.IsSystem = true
	}
	return v
}

// ClassifyControllerAttached returns the fixed verdict for any physical
// drive exposed by a RAID/HBA controller.
func ClassifyControllerAttached() Verdict {
	return Verdict{IsSystem: false, EraseAllowed: true}
}

// IsProtectedMountpoint reports whether mp equals, or lives under, a
// protected mountpoint.
func IsProtectedMountpoint(mp string) bool {
	if mp == "" {
		return false
	}
	for _, sys := range ProtectedMountpoints {
		if mp == sys {
			return true
		}
		prefix := strings.TrimRight(sys, "/") + "/"
		if strings.HasPrefix(mp, prefix) {
			return true
		}
	}
	return false
}

func isInternalMainboardDisk(tran string, a BlockAttrs) bool {
	switch tran {
	case "sata", "ata", "nvme":
	default:
		return false
	}
	return !a.Removable && !a.Hotplug && tran != "usb"
}
