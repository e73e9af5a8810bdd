package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hwerner/sanistation/internal/device"
	"github.com/hwerner/sanistation/internal/target"
)

// badblocksModes maps mode keys onto badblocks invocations. The destructive
// mode overwrites the whole drive.
var badblocksModes = map[string][]string{
	"read-only":   {"badblocks", "-sv"},
	"destructive": {"badblocks", "-wsv"},
}

func badblocksMethod(mode string) string {
	if mode == "destructive" {
		return "Badblocks Destructive"
	}
	return "Badblocks Read-Only"
}

// RunBadblocks surface-tests a drive. Even the read-only mode goes through
// the target resolver: every tool that takes a raw device path does.
func RunBadblocks(ctx context.Context, r *target.Resolver, e *Executor, dev device.Device, mode string) (Result, error) {
	args, ok := badblocksModes[mode]
	if !ok {
		args = badblocksModes["read-only"]
		mode = "read-only"
	}

	t, err := r.Resolve(ctx, dev)
	if err != nil {
		return Result{}, err
	}

	argv := append(append([]string{}, args...), t.Path)
	result := Result{
		Target:      t.Path,
		MappingHint: t.MappingHint,
		Method:      badblocksMethod(mode),
		Command:     commandLine(argv),
		StartedAt:   time.Now(),
	}

	stdout, stderr, runErr := e.Sudo(ctx, argv)
	result.Stdout = stdout
	result.Stderr = stderr
	result.FinishedAt = time.Now()
	result.OK = runErr == nil
	if runErr != nil {
		msg := strings.TrimSpace(stderr)
		if msg == "" {
			msg = runErr.Error()
		}
		result.Error = fmt.Sprintf("badblocks (%s) on %s: %s", mode, t.Path, msg)
	}
	return result, nil
}
