// Package udev exposes per-device identity properties as a best-effort
// last resort for drives whose controller firmware hid their serial.
package udev

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Properties are the identity-relevant udev keys for one block device.
type Properties struct {
	Serial      string // ID_SERIAL
	SerialShort string // ID_SERIAL_SHORT
	Model       string // ID_MODEL
	ModelEnc    string // ID_MODEL_ENC
}

// BestSerial prefers the short serial, which matches what lsblk reports.
func (p Properties) BestSerial() string {
	if p.SerialShort != "" {
		return p.SerialShort
	}
	return p.Serial
}

// BestModel prefers the plain model over the escaped encoding.
func (p Properties) BestModel() string {
	if p.Model != "" {
		return p.Model
	}
	return decodeEnc(p.ModelEnc)
}

// Query reads identity properties for a kernel device path such as
// /dev/sdc. The udev database under /run/udev/data is consulted directly;
// udevadm is the fallback when the database file is unavailable.
func Query(devPath string) (Properties, error) {
	name := filepath.Base(devPath)

	majMin, err := os.ReadFile(filepath.Join("/sys/block", name, "dev"))
	if err == nil {
		dbPath := filepath.Join("/run/udev/data", "b"+strings.TrimSpace(string(majMin)))
		if file, err := os.Open(dbPath); err == nil {
			defer file.Close()
			return parseDatabase(file), nil
		}
	}

	return queryUdevadm(devPath)
}

// parseDatabase scans a /run/udev/data record. Property lines carry an
// E: prefix.
func parseDatabase(r io.Reader) Properties {
	var props Properties
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "E:") {
			continue
		}
		key, value, ok := strings.Cut(strings.TrimPrefix(line, "E:"), "=")
		if !ok {
			continue
		}
		props.set(key, value)
	}
	return props
}

func queryUdevadm(devPath string) (Properties, error) {
	out, err := exec.Command("udevadm", "info", "--query=property", "--name="+devPath).Output()
	if err != nil {
		return Properties{}, fmt.Errorf("udev query for %s: %w", devPath, err)
	}

	var props Properties
	for _, line := range strings.Split(string(out), "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		props.set(key, value)
	}
	return props, nil
}

func (p *Properties) set(key, value string) {
	switch key {
	case "ID_SERIAL":
		p.Serial = value
	case "ID_SERIAL_SHORT":
		p.SerialShort = value
	case "ID_MODEL":
		p.Model = value
	case "ID_MODEL_ENC":
		p.ModelEnc = value
	}
}

// decodeEnc undoes the \x20-style escaping of ID_MODEL_ENC.
func decodeEnc(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && s[i+1] == 'x' {
			var c byte
			if _, err := fmt.Sscanf(s[i+2:i+4], "%02x", &c); err == nil {
				b.WriteByte(c)
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return strings.TrimSpace(b.String())
}
