package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hwerner/sanistation/internal/device"
	"github.com/hwerner/sanistation/internal/target"
)

// fioPresets are the benchmark profiles offered to the operator. The
// device placeholder is filled with the resolved target.
var fioPresets = map[string][]string{
	"quick-read": {
		"fio", "--name=quickread", "--filename={device}",
		"--rw=read", "--bs=1M", "--size=1G", "--iodepth=8",
	},
	"quick-write": {
		"fio", "--name=quickwrite", "--filename={device}",
		"--rw=write", "--bs=1M", "--size=1G", "--iodepth=8",
	},
	"random": {
		"fio", "--name=random", "--filename={device}",
		"--rw=randrw", "--bs=4k", "--size=1G", "--iodepth=32",
	},
	"full": {
		"fio", "--name=full", "--filename={device}",
		"--rw=write", "--bs=1M", "--iodepth=16",
	},
}

// FioMetrics are the headline numbers extracted from fio's JSON output.
type FioMetrics struct {
	BandwidthMBs float64 `json:"bw_mb_s"`
	IOPS         float64 `json:"iops"`
	LatencyMs    float64 `json:"lat_ms"`
	Complete     bool    `json:"complete"`
}

// FioResult is one benchmark run.
type FioResult struct {
	Result
	Metrics FioMetrics `json:"metrics"`
}

// RunFio benchmarks a drive with the named preset.
func RunFio(ctx context.Context, r *target.Resolver, e *Executor, dev device.Device, preset string) (FioResult, error) {
	args, ok := fioPresets[preset]
	if !ok {
		args = fioPresets["quick-read"]
		preset = "quick-read"
	}

	t, err := r.Resolve(ctx, dev)
	if err != nil {
		return FioResult{}, err
	}

	argv := make([]string, 0, len(args)+1)
	for _, a := range args {
		argv = append(argv, strings.ReplaceAll(a, "{device}", t.Path))
	}
	argv = append(argv, "--output-format=json")

	result := FioResult{Result: Result{
		Target:      t.Path,
		MappingHint: t.MappingHint,
		Method:      fmt.Sprintf("FIO %s", preset),
		Command:     commandLine(argv),
		StartedAt:   time.Now(),
	}}

	stdout, stderr, runErr := e.Sudo(ctx, argv)
	result.Stdout = stdout
	result.Stderr = stderr
	result.FinishedAt = time.Now()
	result.Metrics = ParseFioOutput([]byte(stdout))
	result.OK = runErr == nil && result.Metrics.Complete
	if !result.OK {
		msg := strings.TrimSpace(stderr)
		if msg == "" && runErr != nil {
			msg = runErr.Error()
		}
		if msg == "" {
			msg = "fio produced no usable metrics"
		}
		result.Error = msg
	}
	return result, nil
}

// ParseFioOutput extracts bandwidth, IOPS and mean latency from fio JSON.
// The read leg is preferred; write-only presets fall back to the write leg.
func ParseFioOutput(out []byte) FioMetrics {
	var payload struct {
		Jobs []struct {
			Read  fioLeg `json:"read"`
			Write fioLeg `json:"write"`
		} `json:"jobs"`
	}
	if err := json.Unmarshal(out, &payload); err != nil || len(payload.Jobs) == 0 {
		return FioMetrics{}
	}

	leg := payload.Jobs[0].Read
	if leg.BWBytes == 0 && leg.BW == 0 {
		leg = payload.Jobs[0].Write
	}

	var m FioMetrics
	switch {
	case leg.BWBytes > 0:
		m.BandwidthMBs = float64(leg.BWBytes) / 1e6
	case leg.BW > 0:
		// bw is reported in KiB/s
		m.BandwidthMBs = float64(leg.BW) / 1024
	}
	m.IOPS = leg.IOPS
	switch {
	case leg.ClatNs.Mean > 0:
		m.LatencyMs = leg.ClatNs.Mean / 1e6
	case leg.LatNs.Mean > 0:
		m.LatencyMs = leg.LatNs.Mean / 1e6
	}
	m.Complete = m.BandwidthMBs > 0 && m.IOPS > 0 && m.LatencyMs > 0
	return m
}

type fioLeg struct {
	BW      int64   `json:"bw"`
	BWBytes int64   `json:"bw_bytes"`
	IOPS    float64 `json:"iops"`
	ClatNs  fioLat  `json:"clat_ns"`
	LatNs   fioLat  `json:"lat_ns"`
}

type fioLat struct {
	Mean float64 `json:"mean"`
}
