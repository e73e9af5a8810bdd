package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hwerner/sanistation/internal/device"
	"github.com/hwerner/sanistation/internal/target"
)

// StandardLabels maps erase-standard keys to their operator-facing names.
var StandardLabels = map[string]string{
	"zero-fill":             "Zero Fill / 1-Pass",
	"dod-3pass":             "DoD 3-Pass",
	"dod-7pass":             "DoD 7-Pass",
	"secure-erase":          "Secure Erase",
	"secure-erase-enhanced": "Secure Erase Enhanced",
}

// StandardLabel returns the display name for a standard, falling back to
// the key itself for unknown standards.
func StandardLabel(standard string) string {
	if label, ok := StandardLabels[standard]; ok {
		return label
	}
	return standard
}

// ErasePlan is a fully resolved secure-erase command sequence. The target
// inside was validated by the chokepoint at planning time; Execute
// re-validates again before running.
type ErasePlan struct {
	Device      device.Device
	Commands    [][]string
	Target      string
	Standard    string
	Method      string
	MappingHint string
}

// PlanSecureErase resolves the device and maps the requested standard onto
// the tool-specific command sequence (hdparm for SATA-class targets, nvme
// format for NVMe namespaces).
func PlanSecureErase(ctx context.Context, r *target.Resolver, dev device.Device, standard string) (ErasePlan, error) {
	t, err := r.Resolve(ctx, dev)
	if err != nil {
		return ErasePlan{}, err
	}

	var commands [][]string
	if strings.HasPrefix(t.Path, "/dev/nvme") {
		commands, err = nvmeCommands(t.Path, standard)
	} else {
		commands, err = hdparmCommands(t.Path, standard)
	}
	if err != nil {
		return ErasePlan{}, err
	}

	return ErasePlan{
		Device:      dev,
		Commands:    commands,
		Target:      t.Path,
		Standard:    standard,
		Method:      StandardLabel(standard),
		MappingHint: t.MappingHint,
	}, nil
}

// hdparmCommands builds the ATA security-erase sequence: set a throwaway
// user password, then issue the erase.
func hdparmCommands(path, standard string) ([][]string, error) {
	setPass := []string{"hdparm", "--user-master", "u", "--security-set-pass", "PASS", path}

	var erase []string
	switch standard {
	case "secure-erase", "zero-fill":
		erase = []string{"hdparm", "--security-erase", "PASS", path}
	case "secure-erase-enhanced":
		erase = []string{"hdparm", "--security-erase-enhanced", "PASS", path}
	default:
		return nil, fmt.Errorf("unknown erase standard: %s", standard)
	}
	return [][]string{setPass, erase}, nil
}

// nvmeCommands maps standards onto the namespace format SES levels.
func nvmeCommands(path, standard string) ([][]string, error) {
	ses := map[string]string{
		"zero-fill":             "--ses=0",
		"secure-erase":          "--ses=1",
		"secure-erase-enhanced": "--ses=2",
	}
	flag, ok := ses[standard]
	if !ok {
		return nil, fmt.Errorf("erase standard %s is not supported for NVMe", standard)
	}
	return [][]string{{"nvme", "format", path, flag}}, nil
}

// Execute runs a plan, re-resolving the target first. A target that no
// longer resolves to the planned path aborts the run.
func (p ErasePlan) Execute(ctx context.Context, r *target.Resolver, e *Executor) Result {
	result := Result{
		Target:      p.Target,
		MappingHint: p.MappingHint,
		Method:      p.Method,
		Standard:    p.Standard,
		Command:     joinCommandLines(p.Commands),
		StartedAt:   time.Now(),
	}

	t, err := r.Resolve(ctx, p.Device)
	if err != nil {
		result.Error = err.Error()
		result.FinishedAt = time.Now()
		return result
	}
	if t.Path != p.Target {
		result.Error = fmt.Sprintf("target moved between planning and execution: %s != %s", t.Path, p.Target)
		result.FinishedAt = time.Now()
		return result
	}

	result.OK = true
	for _, argv := range p.Commands {
		stdout, stderr, err := e.Sudo(ctx, argv)
		if err != nil {
			// A failed step aborts the sequence; issuing the erase after a
			// failed set-pass would fail against the wrong security state.
			result.OK = false
			msg := strings.TrimSpace(stderr)
			if msg == "" {
				msg = strings.TrimSpace(stdout)
			}
			if msg == "" {
				msg = err.Error()
			}
			result.Error = msg
			break
		}
	}
	result.FinishedAt = time.Now()
	return result
}
