// Package runner wraps the destructive and diagnostic tools (hdparm, nvme,
// badblocks, nwipe, fio). Every runner re-validates its target through the
// target resolver immediately before a command is built; nothing here ever
// trusts a path carried in a Device record.
package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// ErrNoCredentials is returned when a run requiring elevation has no sudo
// password supplied.
var ErrNoCredentials = errors.New("sudo password not configured")

// Result captures one tool run for the audit trail.
type Result struct {
	OK          bool      `json:"ok"`
	Target      string    `json:"target"`
	MappingHint string    `json:"mapping_hint,omitempty"`
	Method      string    `json:"method"`
	Standard    string    `json:"standard,omitempty"`
	Command     string    `json:"command"`
	Stdout      string    `json:"stdout,omitempty"`
	Stderr      string    `json:"stderr,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Executor runs commands with elevated privilege. The password is supplied
// per call and lives only as long as the executor a caller constructs.
type Executor struct {
	SudoPassword string

	// run is swapped out by tests.
	run func(ctx context.Context, argv []string, stdin string) (stdout, stderr string, err error)
}

// NewExecutor returns an executor running real sudo commands.
func NewExecutor(sudoPassword string) *Executor {
	e := &Executor{SudoPassword: sudoPassword}
	e.run = execRun
	return e
}

func execRun(ctx context.Context, argv []string, stdin string) (string, string, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Sudo runs one command under sudo -S, feeding the password on stdin.
func (e *Executor) Sudo(ctx context.Context, argv []string) (string, string, error) {
	if e.SudoPassword == "" {
		return "", "", ErrNoCredentials
	}
	full := append([]string{"sudo", "-S"}, argv...)
	return e.run(ctx, full, e.SudoPassword+"\n")
}

// commandLine renders an argv for logging, sudo prefix included.
func commandLine(argv []string) string {
	return "sudo " + strings.Join(argv, " ")
}

// joinCommandLines renders a multi-step plan the way the audit log stores it.
func joinCommandLines(commands [][]string) string {
	lines := make([]string, 0, len(commands))
	for _, argv := range commands {
		lines = append(lines, commandLine(argv))
	}
	return strings.Join(lines, " && ")
}
