// Package blockdev enumerates kernel-visible disks via lsblk and classifies
// each one for the sanitization workflow.
package blockdev

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/hwerner/sanistation/internal/device"
	"github.com/hwerner/sanistation/internal/safety"
)

// Inventory is the result of one kernel enumeration pass. Enumeration never
// fails hard: a missing or broken lsblk yields an empty Disks slice plus a
// diagnostic, and callers must treat empty as "no information".
type Inventory struct {
	Disks    []device.Device
	Warnings []string
}

// lsblkNode mirrors one entry of `lsblk -O -J`. Only the columns the engine
// needs are declared; -O emits many more, which json ignores.
type lsblkNode struct {
	Name        string      `json:"name"`
	Path        string      `json:"path"`
	Type        string      `json:"type"`
	Size        string      `json:"size"`
	Model       string      `json:"model"`
	Serial      string      `json:"serial"`
	Tran        string      `json:"tran"`
	Subsystems  string      `json:"subsystems"`
	Removable   flexBool    `json:"rm"`
	Hotplug     flexBool    `json:"hotplug"`
	Mountpoint  string      `json:"mountpoint"`
	Mountpoints []string    `json:"mountpoints"`
	Children    []lsblkNode `json:"children"`
}

// flexBool accepts the bool-or-string typing of lsblk flag columns:
// util-linux before 2.37 emits "rm": "1", newer versions a real bool.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "true", "1":
		*b = true
	default:
		*b = false
	}
	return nil
}

// ListKernelDisks enumerates top-level disks from the live block-device
// tree. Each disk carries the union of mountpoints found anywhere in its
// partition tree and a safety verdict.
func ListKernelDisks() Inventory {
	out, err := exec.Command("lsblk", "-O", "-J").Output()
	if err != nil {
		return Inventory{Warnings: []string{fmt.Sprintf("lsblk failed: %v", err)}}
	}
	disks, err := ParseLsblk(out)
	if err != nil {
		return Inventory{Warnings: []string{fmt.Sprintf("lsblk output unparseable: %v", err)}}
	}
	return Inventory{Disks: disks}
}

// ParseLsblk converts raw `lsblk -O -J` output into classified disk records.
func ParseLsblk(out []byte) ([]device.Device, error) {
	var tree struct {
		Blockdevices []lsblkNode `json:"blockdevices"`
	}
	if err := json.Unmarshal(out, &tree); err != nil {
		return nil, err
	}

	var disks []device.Device
	for _, node := range tree.Blockdevices {
		if node.Type != "disk" {
			continue
		}
		disks = append(disks, classifyDisk(node))
	}
	return disks, nil
}

func classifyDisk(node lsblkNode) device.Device {
	path := node.Path
	if path == "" {
		path = "/dev/" + node.Name
	}

	transport := strings.ToLower(strings.TrimSpace(node.Tran))
	if transport == "" {
		transport = strings.ToLower(strings.TrimSpace(node.Subsystems))
	}

	points := make(map[string]struct{})
	collectMountpoints(node, points)
	mountpoints := device.NormalizeMountpoints(points)

	verdict := safety.Classify(safety.BlockAttrs{
		Transport:   transport,
		Removable:   bool(node.Removable),
		Hotplug:     bool(node.Hotplug),
		Mountpoints: mountpoints,
	})

	label := node.Name
	if label == "" {
		label = path
	}

	return device.Device{
		Label:        label,
		Addr:         device.KernelPath(path),
		Path:         path,
		Size:         strings.TrimSpace(node.Size),
		Model:        strings.TrimSpace(node.Model),
		Serial:       strings.TrimSpace(node.Serial),
		Transport:    transport,
		Mountpoints:  mountpoints,
		IsSystem:     verdict.IsSystem,
		EraseAllowed: verdict.EraseAllowed,
	}
}

// collectMountpoints walks the partition/child tree, unioning every
// mountpoint found at any depth. Older lsblk emits a scalar "mountpoint",
// newer ones a "mountpoints" array; both are honored.
func collectMountpoints(node lsblkNode, points map[string]struct{}) {
	for _, mp := range node.Mountpoints {
		if mp != "" {
			points[mp] = struct{}{}
		}
	}
	if node.Mountpoint != "" {
		points[node.Mountpoint] = struct{}{}
	}
	for _, child := range node.Children {
		collectMountpoints(child, points)
	}
}
