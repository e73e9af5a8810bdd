package storcli

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"testing"
)

type fakeRun func(args ...string) (stdout, stderr string, err error)

func newTestClient(fake fakeRun) *Client {
	c := New("hunter2")
	c.run = func(ctx context.Context, args ...string) ([]byte, []byte, error) {
		stdout, stderr, err := fake(args...)
		return []byte(stdout), []byte(stderr), err
	}
	return c
}

var errExit = errors.New("exit status 1")

func TestRunJSONNoPassword(t *testing.T) {
	c := newTestClient(func(args ...string) (string, string, error) {
		t.Fatal("run called despite missing password")
		return "", "", nil
	})
	c.SudoPassword = ""
	_, err := c.runJSON(context.Background(), "show", "J")
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("err = %v, want ErrAuthFailed", err)
	}
}

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		stderr string
		err    error
		want   error
	}{
		{"binary missing", "", "", exec.ErrNotFound, ErrToolNotFound},
		{"shell not found", "", "bash: storcli: command not found", errExit, ErrToolNotFound},
		{"no such file", "", "sudo: storcli: No such file or directory", errExit, ErrToolNotFound},
		{"bad password", "", "sudo: 1 incorrect password attempt", errExit, ErrAuthFailed},
		{"auth failed", "", "sudo: Authentication failed", errExit, ErrAuthFailed},
		{"firmware refusal", "", "Status = Failure, Command Invalid", errExit, ErrCommandUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(func(args ...string) (string, string, error) {
				return tt.stdout, tt.stderr, tt.err
			})
			_, err := c.runJSON(context.Background(), "show", "J")
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestClassifyFailureToolError(t *testing.T) {
	c := newTestClient(func(args ...string) (string, string, error) {
		return "", "controller reset in progress", errExit
	})
	_, err := c.runJSON(context.Background(), "show", "J")
	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("err = %T %v, want *ToolError", err, err)
	}
	if !strings.Contains(toolErr.Stderr, "controller reset") {
		t.Errorf("Stderr = %q", toolErr.Stderr)
	}
}

const jbodRefusalPayload = `{
  "Controllers": [{
    "Command Status": {"Status": "Failure"},
    "Response Data": {
      "Description": "Set Drive JBOD Failed",
      "ErrMsg": "Command Invalid"
    }
  }]
}`

func TestSetAllJBODRefusal(t *testing.T) {
	// Non-zero exit with the refusal in the payload.
	c := newTestClient(func(args ...string) (string, string, error) {
		return jbodRefusalPayload, "", errExit
	})
	err := c.SetAllJBOD(context.Background(), 0)
	if !errors.Is(err, ErrCommandUnsupported) {
		t.Errorf("err = %v, want ErrCommandUnsupported", err)
	}

	// Zero exit with the refusal in the payload.
	c = newTestClient(func(args ...string) (string, string, error) {
		return jbodRefusalPayload, "", nil
	})
	err = c.SetAllJBOD(context.Background(), 0)
	if !errors.Is(err, ErrCommandUnsupported) {
		t.Errorf("zero-exit refusal: err = %v, want ErrCommandUnsupported", err)
	}
}

func TestSetAllJBODSuccess(t *testing.T) {
	c := newTestClient(func(args ...string) (string, string, error) {
		want := "/c0 /eall /sall set jbod"
		if got := strings.Join(args, " "); got != want {
			t.Errorf("args = %q, want %q", got, want)
		}
		return `{"Controllers":[{"Command Status":{"Status":"Success"},"Response Data":{}}]}`, "", nil
	})
	if err := c.SetAllJBOD(context.Background(), 0); err != nil {
		t.Errorf("err = %v", err)
	}
}

func TestListControllers(t *testing.T) {
	payload := `{
	  "Controllers": [{
	    "Response Data": {
	      "Basics": {"Controller": 0, "Model": "LSI 9211-8i", "Serial Number": "SV12345678"}
	    }
	  }, {
	    "Response Data": {
	      "Basics": {"Controller": "1", "Model": "LSI 9361-8i", "Serial Number": "SV87654321"}
	    }
	  }]
	}`
	c := newTestClient(func(args ...string) (string, string, error) {
		return payload, "", nil
	})
	controllers, err := c.ListControllers(context.Background())
	if err != nil {
		t.Fatalf("ListControllers: %v", err)
	}
	if len(controllers) != 2 {
		t.Fatalf("got %d controllers, want 2", len(controllers))
	}
	if controllers[0].ID != 0 || controllers[0].Model != "LSI 9211-8i" {
		t.Errorf("controllers[0] = %+v", controllers[0])
	}
	// String-typed controller IDs are accepted.
	if controllers[1].ID != 1 {
		t.Errorf("controllers[1].ID = %d, want 1", controllers[1].ID)
	}
}

const summaryPayload = `{
  "Controllers": [{
    "Response Data": {
      "PD LIST": [
        {"EID:Slt": "8:2", "Size": "1.818 TB", "Intf": "SAS", "Med": "HDD",
         "Model": "ST2000NM0023", "State": "JBOD"},
        {"EID:Slt": "8:3", "Size": "3.637 TB", "Intf": "SAS", "Med": "HDD",
         "Model": "HUS726040AL5210", "State": "UGood"}
      ]
    }
  }]
}`

const detailPayload = `{
  "Controllers": [{
    "Response Data": {
      "Drive /c0/e8/s2 - Detailed Information": {
        "Drive /c0/e8/s2 Device attributes": {
          "SN": "Z9Y8X7W6",
          "Model Number": "ST2000NM0023"
        },
        "Drive /c0/e8/s2 State": {
          "OS Drive Name": "/dev/sdc"
        }
      }
    }
  }]
}`

func TestListPhysicalDrives(t *testing.T) {
	c := newTestClient(func(args ...string) (string, string, error) {
		switch strings.Join(args, " ") {
		case "/c0 show all J":
			return summaryPayload, "", nil
		case "/c0 /eall /sall show all J":
			return detailPayload, "", nil
		default:
			// Per-slot fallback for the drive missing from the bulk dump.
			return "", "slot query failed", errExit
		}
	})

	drives, err := c.ListPhysicalDrives(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListPhysicalDrives: %v", err)
	}
	if len(drives) != 2 {
		t.Fatalf("got %d drives, want 2", len(drives))
	}

	d := drives[0]
	if d.Controller != 0 || d.Enclosure != 8 || d.Slot != 2 {
		t.Errorf("address = c%d e%d s%d", d.Controller, d.Enclosure, d.Slot)
	}
	if d.Serial != "Z9Y8X7W6" {
		t.Errorf("serial = %q, want Z9Y8X7W6 (from detail dump)", d.Serial)
	}
	if d.OSPath != "/dev/sdc" {
		t.Errorf("OSPath = %q, want /dev/sdc", d.OSPath)
	}
	if d.VirtualPath() != "/dev/megaraid/0/8:2" {
		t.Errorf("VirtualPath = %q", d.VirtualPath())
	}

	// No detail anywhere: serial degrades to the UNKNOWN sentinel and the
	// summary model survives.
	d = drives[1]
	if d.Serial != "UNKNOWN" {
		t.Errorf("serial = %q, want UNKNOWN", d.Serial)
	}
	if d.Model != "HUS726040AL5210" {
		t.Errorf("model = %q", d.Model)
	}
	if d.Identity().HasSerial() {
		t.Error("UNKNOWN serial treated as usable identity")
	}
}

func TestSplitEIDSlt(t *testing.T) {
	tests := []struct {
		in        string
		eid, slot int
	}{
		{"8:2", 8, 2},
		{" 8 : 2 ", 8, 2},
		{"252:14", 252, 14},
		{"", -1, -1},
		{"8", -1, -1},
		{"a:b", -1, -1},
	}
	for _, tt := range tests {
		eid, slot := splitEIDSlt(tt.in)
		if eid != tt.eid || slot != tt.slot {
			t.Errorf("splitEIDSlt(%q) = (%d, %d), want (%d, %d)", tt.in, eid, slot, tt.eid, tt.slot)
		}
	}
}

func TestToolErrorMessage(t *testing.T) {
	err := &ToolError{Args: []string{"/c0", "show"}, Stderr: "boom"}
	want := fmt.Sprintf("storcli %s failed: %s", "/c0 show", "boom")
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
