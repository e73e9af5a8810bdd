package storcli

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hwerner/sanistation/internal/device"
	"github.com/hwerner/sanistation/internal/udev"
)

// Controller is one adapter reported by `storcli show J`.
type Controller struct {
	ID     int
	Model  string
	Serial string
}

// Drive is one controller-attached physical drive. Serial and Model fall
// back to device.UnknownIdentity when no extraction strategy recovered them.
type Drive struct {
	Controller int
	Enclosure  int
	Slot       int
	EIDSlt     string

	Size   string
	Intf   string
	Med    string
	Model  string
	Serial string
	State  string

	// OSPath is the kernel-path hint recovered from the detail dump, or
	// empty when the firmware exposed none.
	OSPath string
}

// VirtualPath is the stable placeholder address used when no kernel path
// is known ( /dev/megaraid/<controller>/<eid>:<slot> ).
func (d Drive) VirtualPath() string {
	return fmt.Sprintf("/dev/megaraid/%d/%s", d.Controller, d.EIDSlt)
}

// Identity returns the drive's resolution key.
func (d Drive) Identity() device.IdentityKey {
	return device.IdentityKey{
		Serial: strings.TrimSpace(d.Serial),
		Model:  strings.TrimSpace(d.Model),
		Size:   strings.TrimSpace(d.Size),
	}
}

// ListControllers enumerates adapters via `storcli show J`.
func (c *Client) ListControllers(ctx context.Context) ([]Controller, error) {
	tree, err := c.runJSON(ctx, "show", "J")
	if err != nil {
		return nil, err
	}
	return parseControllers(tree), nil
}

func parseControllers(tree map[string]any) []Controller {
	var out []Controller
	for _, ctrl := range controllerEntries(tree) {
		resp, _ := ctrl["Response Data"].(map[string]any)
		basics, _ := resp["Basics"].(map[string]any)
		id, ok := asInt(basics["Controller"])
		if !ok {
			continue
		}
		model, _ := basics["Model"].(string)
		serial, _ := basics["Serial Number"].(string)
		out = append(out, Controller{ID: id, Model: model, Serial: serial})
	}
	return out
}

// ListPhysicalDrives queries one controller for its physical drives. The
// summary listing (`/cX show all J`) rarely carries serials, so a bulk
// detail dump (`/cX /eall /sall show all J`) is harvested alongside and a
// per-slot call is the final structured fallback.
func (c *Client) ListPhysicalDrives(ctx context.Context, controllerID int) ([]Drive, error) {
	tree, err := c.runJSON(ctx, fmt.Sprintf("/c%d", controllerID), "show", "all", "J")
	if err != nil {
		return nil, err
	}

	details := c.collectDriveDetails(ctx, controllerID)

	var drives []Drive
	resp := responseData(tree)
	pdList, _ := resp["PD LIST"].([]any)
	for _, raw := range pdList {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		drive := parseSummaryEntry(controllerID, entry)

		detail, ok := details[slotKey{drive.Enclosure, drive.Slot}]
		if !ok {
			detail = c.fetchSlotDetail(ctx, controllerID, drive.Enclosure, drive.Slot)
		}
		if detail.serial != "" {
			drive.Serial = detail.serial
		}
		if detail.model != "" {
			drive.Model = detail.model
		}
		if detail.osPath != "" {
			drive.OSPath = detail.osPath
		}

		// Last resort: a udev property query against the OS-path hint.
		if drive.Serial == "" && kernelPathRe.MatchString(drive.OSPath) {
			if props, err := udev.Query(drive.OSPath); err == nil {
				if drive.Serial == "" {
					drive.Serial = props.BestSerial()
				}
				if drive.Model == "" {
					drive.Model = props.BestModel()
				}
			}
		}

		drive.Serial = device.OrUnknown(drive.Serial)
		drive.Model = device.OrUnknown(drive.Model)
		drives = append(drives, drive)
	}
	return drives, nil
}

// parseSummaryEntry reads the declared fields of one PD LIST row. This is
// extraction precedence step one; all later steps only fill gaps.
func parseSummaryEntry(controllerID int, entry map[string]any) Drive {
	eidSlt := firstString(entry, "EID:Slt", "EID/Slt", "EID:SLOT", "EID/SLOT")
	eid, slot := splitEIDSlt(eidSlt)

	return Drive{
		Controller: controllerID,
		Enclosure:  eid,
		Slot:       slot,
		EIDSlt:     eidSlt,
		Size:       firstString(entry, "Size"),
		Intf:       firstString(entry, "Intf"),
		Med:        firstString(entry, "Med"),
		Model:      strings.TrimSpace(firstString(entry, "Model")),
		Serial:     strings.TrimSpace(firstString(entry, "SN", "S/N", "Serial Number")),
		State:      firstString(entry, "State"),
	}
}

type slotKey struct {
	enclosure int
	slot      int
}

type slotDetail struct {
	serial string
	model  string
	osPath string
}

var detailKeyRe = regexp.MustCompile(`(?i)/e(\d+)/s(\d+)`)

// collectDriveDetails reads the bulk detail dump once and maps identity
// data onto (enclosure, slot). A failed dump degrades to an empty map; the
// per-slot fallback still runs.
func (c *Client) collectDriveDetails(ctx context.Context, controllerID int) map[slotKey]slotDetail {
	details := make(map[slotKey]slotDetail)

	tree, err := c.runJSON(ctx, fmt.Sprintf("/c%d", controllerID), "/eall", "/sall", "show", "all", "J")
	if err != nil {
		return details
	}
	harvestDetails(responseData(tree), details)
	return details
}

// harvestDetails walks a detail Response Data block, locating per-drive
// sub-objects either by a declared EID:Slt field or by the /eX/sY fragment
// in the enclosing key.
func harvestDetails(resp map[string]any, details map[slotKey]slotDetail) {
	for key, raw := range resp {
		value, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		eid, slot := splitEIDSlt(firstString(value, "EID:Slt", "EID/Slt", "EID:SLOT", "EID/SLOT"))
		if eid < 0 || slot < 0 {
			if m := detailKeyRe.FindStringSubmatch(key); m != nil {
				eid, _ = strconv.Atoi(m[1])
				slot, _ = strconv.Atoi(m[2])
			}
		}
		if eid < 0 || slot < 0 {
			continue
		}

		serial, model := extractIdentity(value)
		osPath := findOSPathHint(value)
		if serial == "" && model == "" && osPath == "" {
			continue
		}

		k := slotKey{eid, slot}
		existing := details[k]
		if existing.serial == "" {
			existing.serial = serial
		}
		if existing.model == "" {
			existing.model = model
		}
		if existing.osPath == "" {
			existing.osPath = osPath
		}
		details[k] = existing
	}
}

// fetchSlotDetail queries a single drive (`/cX /eY /sZ show all J`) when it
// was missing from the bulk dump.
func (c *Client) fetchSlotDetail(ctx context.Context, controllerID, enclosure, slot int) slotDetail {
	if enclosure < 0 || slot < 0 {
		return slotDetail{}
	}
	tree, err := c.runJSON(ctx,
		fmt.Sprintf("/c%d", controllerID),
		fmt.Sprintf("/e%d", enclosure),
		fmt.Sprintf("/s%d", slot),
		"show", "all", "J")
	if err != nil {
		return slotDetail{}
	}

	for _, raw := range responseData(tree) {
		value, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		serial, model := extractIdentity(value)
		osPath := findOSPathHint(value)
		if serial != "" || model != "" || osPath != "" {
			return slotDetail{serial: serial, model: model, osPath: osPath}
		}
	}
	return slotDetail{}
}

// SetAllJBOD flips every drive on the controller to JBOD mode. A firmware
// refusal (already set, or unsupported) surfaces as ErrCommandUnsupported
// and is informational.
func (c *Client) SetAllJBOD(ctx context.Context, controllerID int) error {
	tree, err := c.runJSON(ctx, fmt.Sprintf("/c%d", controllerID), "/eall", "/sall", "set", "jbod")
	if err != nil {
		return err
	}
	// Some firmware reports the refusal in the payload with a zero exit.
	if isJBODCommandInvalid(tree) {
		return ErrCommandUnsupported
	}
	return nil
}

// splitEIDSlt parses "8:2" into (8, 2); (-1, -1) on anything else.
func splitEIDSlt(s string) (int, int) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return -1, -1
	}
	eid, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	slot, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return -1, -1
	}
	return eid, slot
}

// firstString returns the first non-empty string among the named keys.
func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// asInt accepts the number-or-string typing storcli uses for IDs.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
