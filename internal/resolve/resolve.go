// Package resolve maps controller-attached drives onto kernel block
// devices. The matching is pure over its inputs: the same controller and
// kernel snapshots always yield the same path.
package resolve

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/hwerner/sanistation/internal/device"
	"github.com/hwerner/sanistation/internal/storcli"
)

// Resolve finds the kernel path for a controller-attached drive, in order:
// exact serial match, (model, size) composite match, then the firmware's
// own OS-path hint unvalidated. Multiple matches (cloned or misreported
// serials) tie-break on the largest reported size; identical serials should
// not occur in practice, so any deterministic pick is acceptable and the
// largest disk loses the most data if wrong the other way around.
func Resolve(drive storcli.Drive, kernel []device.Device) (string, bool) {
	key := drive.Identity()

	if key.HasSerial() {
		var matches []device.Device
		for _, dev := range kernel {
			if strings.TrimSpace(dev.Serial) == key.Serial {
				matches = append(matches, dev)
			}
		}
		if len(matches) > 0 {
			return pickLargest(matches).Path, true
		}
	}

	if key.Model != "" && key.Size != "" {
		var matches []device.Device
		for _, dev := range kernel {
			if strings.TrimSpace(dev.Model) == key.Model &&
				strings.TrimSpace(dev.Size) == key.Size {
				matches = append(matches, dev)
			}
		}
		if len(matches) > 0 {
			return pickLargest(matches).Path, true
		}
	}

	if strings.HasPrefix(drive.OSPath, "/dev/") {
		return drive.OSPath, true
	}
	return "", false
}

// pickLargest returns the device with the largest parsed size. Ties keep
// the earlier device, so the result is stable for a fixed input order.
func pickLargest(devs []device.Device) device.Device {
	largest := devs[0]
	largestSize := SizeToBytes(largest.Size)
	for _, dev := range devs[1:] {
		if size := SizeToBytes(dev.Size); size > largestSize {
			largestSize = size
			largest = dev
		}
	}
	return largest
}

var bareSizeRe = regexp.MustCompile(`(?i)^([0-9]*\.?[0-9]+)\s*([KMGT]?)`)

var bareSuffixMultiplier = map[string]float64{
	"":  1,
	"K": 1e3,
	"M": 1e6,
	"G": 1e9,
	"T": 1e12,
}

// SizeToBytes parses human-readable sizes from lsblk ("1.8T") and storcli
// ("1.818 TB") into comparable byte counts. Unparseable input counts as
// zero, which only ever demotes a candidate in tie-breaking.
func SizeToBytes(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := humanize.ParseBytes(s); err == nil {
		return float64(n)
	}
	m := bareSizeRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return value * bareSuffixMultiplier[strings.ToUpper(m[2])]
}
