// Package storcli talks to the MegaRAID controller management tool and
// turns its schema-inconsistent JSON into physical-drive records with
// verified identity attributes.
package storcli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Error taxonomy for controller tool invocations. ErrCommandUnsupported is
// informational (firmware refused, e.g. JBOD already set) and must not be
// surfaced as a failure by callers.
var (
	ErrToolNotFound       = errors.New("storcli binary not found")
	ErrAuthFailed         = errors.New("sudo authentication failed")
	ErrCommandUnsupported = errors.New("storcli command unsupported by firmware")
)

// ToolError is the generic external-tool failure, carrying whatever
// diagnostic text the tool produced.
type ToolError struct {
	Args   []string
	Stderr string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("storcli %s failed: %s", strings.Join(e.Args, " "), e.Stderr)
}

// DefaultTimeout bounds every controller query. Controller firmware can
// take tens of seconds on fully populated enclosures.
const DefaultTimeout = 60 * time.Second

// DefaultBin is the controller tool binary new clients invoke. Overridable
// from station config for hosts that install storcli64 or a versioned name.
var DefaultBin = "storcli"

// Client runs storcli with elevated privilege. The sudo password is held
// only for the lifetime of the client a caller constructs per operation;
// nothing is cached across invocations.
type Client struct {
	Bin          string
	SudoPassword string
	Timeout      time.Duration

	// run is swapped out by tests; the default execs sudo -S storcli.
	run func(ctx context.Context, args ...string) (stdout, stderr []byte, err error)
}

// New returns a client using the storcli binary from PATH.
func New(sudoPassword string) *Client {
	c := &Client{
		Bin:          DefaultBin,
		SudoPassword: sudoPassword,
		Timeout:      DefaultTimeout,
	}
	c.run = c.execRun
	return c
}

func (c *Client) execRun(ctx context.Context, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, "sudo", append([]string{"-S", c.Bin}, args...)...)
	cmd.Stdin = strings.NewReader(c.SudoPassword + "\n")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// runJSON executes one storcli invocation and decodes its JSON payload into
// an untyped tree. Firmware variance makes fixed-schema decoding brittle;
// all field access goes through the extractor helpers instead.
func (c *Client) runJSON(ctx context.Context, args ...string) (map[string]any, error) {
	if c.SudoPassword == "" {
		return nil, fmt.Errorf("sudo password not configured: %w", ErrAuthFailed)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout, stderr, err := c.run(ctx, args...)

	var tree map[string]any
	if len(stdout) > 0 {
		// Best effort: storcli emits JSON even on some failures, and the
		// payload is needed to recognize firmware refusals.
		_ = json.Unmarshal(stdout, &tree)
	}

	if err != nil {
		return nil, classifyFailure(args, stdout, stderr, tree, err)
	}
	if tree == nil {
		if err := json.Unmarshal(stdout, &tree); err != nil {
			return nil, &ToolError{Args: args, Stderr: fmt.Sprintf("invalid JSON output: %v", err)}
		}
	}
	return tree, nil
}

// classifyFailure maps a non-zero exit into the error taxonomy by
// inspecting stderr substrings and the decoded payload.
func classifyFailure(args []string, stdout, stderr []byte, tree map[string]any, err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return ErrToolNotFound
	}

	msg := strings.TrimSpace(string(stderr))
	if msg == "" {
		msg = strings.TrimSpace(string(stdout))
	}
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "command invalid"), isJBODCommandInvalid(tree):
		return ErrCommandUnsupported
	case strings.Contains(msg, "Authentication failed"),
		strings.Contains(lower, "incorrect password"):
		return ErrAuthFailed
	case strings.Contains(lower, "command not found"),
		strings.Contains(msg, "No such file"):
		return ErrToolNotFound
	}
	if msg == "" {
		msg = err.Error()
	}
	return &ToolError{Args: args, Stderr: msg}
}

// isJBODCommandInvalid recognizes a JBOD refusal reported inside an
// otherwise well-formed payload.
func isJBODCommandInvalid(tree map[string]any) bool {
	for _, ctrl := range controllerEntries(tree) {
		resp, ok := ctrl["Response Data"].(map[string]any)
		if !ok {
			continue
		}
		desc, _ := resp["Description"].(string)
		errMsg, _ := resp["ErrMsg"].(string)
		if strings.Contains(desc, "Set Drive JBOD Failed") &&
			strings.Contains(strings.ToLower(errMsg), "command invalid") {
			return true
		}
	}
	return false
}

// controllerEntries returns the per-controller objects of a storcli payload.
func controllerEntries(tree map[string]any) []map[string]any {
	if tree == nil {
		return nil
	}
	raw, _ := tree["Controllers"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, entry := range raw {
		if m, ok := entry.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// responseData returns the first controller's Response Data block.
func responseData(tree map[string]any) map[string]any {
	for _, ctrl := range controllerEntries(tree) {
		if resp, ok := ctrl["Response Data"].(map[string]any); ok {
			return resp
		}
	}
	return nil
}
