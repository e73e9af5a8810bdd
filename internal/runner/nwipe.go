package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hwerner/sanistation/internal/device"
	"github.com/hwerner/sanistation/internal/target"
)

// nwipeMethods maps erase standards onto nwipe method flags. Standards
// without a dedicated flag fall back to nwipe's default method.
var nwipeMethods = map[string]string{
	"zero-fill": "--method=zero",
	"dod-3pass": "--method=dod3",
	"dod-7pass": "--method=dod7",
}

// RunNwipe wipes one or more drives in a single nwipe invocation. All
// targets must resolve; a single unresolvable device aborts the whole run
// before anything is written.
func RunNwipe(ctx context.Context, r *target.Resolver, e *Executor, devs []device.Device, standard string) (Result, error) {
	if len(devs) == 0 {
		return Result{}, fmt.Errorf("nwipe: no devices selected")
	}

	var targets []string
	var hints []string
	for _, dev := range devs {
		t, err := r.Resolve(ctx, dev)
		if err != nil {
			return Result{}, err
		}
		targets = append(targets, t.Path)
		if t.MappingHint != "" {
			hints = append(hints, t.MappingHint)
		}
	}

	argv := []string{"nwipe"}
	if flag, ok := nwipeMethods[standard]; ok {
		argv = append(argv, flag)
	}
	argv = append(argv, "--autonuke", "--sync", "--verify=last")
	argv = append(argv, targets...)

	result := Result{
		Target:      strings.Join(targets, " "),
		MappingHint: strings.Join(hints, "; "),
		Method:      StandardLabel(standard),
		Standard:    standard,
		Command:     commandLine(argv),
		StartedAt:   time.Now(),
	}

	stdout, stderr, err := e.Sudo(ctx, argv)
	result.Stdout = stdout
	result.Stderr = stderr
	result.FinishedAt = time.Now()
	result.OK = err == nil
	if err != nil {
		msg := strings.TrimSpace(stderr)
		if msg == "" {
			msg = err.Error()
		}
		result.Error = msg
	}
	return result, nil
}
