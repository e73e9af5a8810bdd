package device

import "testing"

func TestControllerSlotAddress(t *testing.T) {
	a := ControllerSlot(0, 8, 2)
	if a.IsKernel() {
		t.Error("controller address reported as kernel")
	}
	if a.Path != "/dev/megaraid/0/8:2" {
		t.Errorf("Path = %q", a.Path)
	}
	if a.EIDSlt() != "8:2" {
		t.Errorf("EIDSlt = %q", a.EIDSlt())
	}
}

func TestKernelPathAddress(t *testing.T) {
	a := KernelPath("/dev/sda")
	if !a.IsKernel() {
		t.Error("kernel address not reported as kernel")
	}
	if a.Path != "/dev/sda" {
		t.Errorf("Path = %q", a.Path)
	}
}

func TestHasSerial(t *testing.T) {
	tests := []struct {
		serial string
		want   bool
	}{
		{"Z9Y8X7W6", true},
		{"", false},
		{"UNKNOWN", false},
		{"unknown", false},
		{"Unknown", false},
	}
	for _, tt := range tests {
		k := IdentityKey{Serial: tt.serial}
		if got := k.HasSerial(); got != tt.want {
			t.Errorf("HasSerial(%q) = %v, want %v", tt.serial, got, tt.want)
		}
	}
}

func TestIdentityTrims(t *testing.T) {
	d := Device{Serial: " Z9Y8X7W6 ", Model: " ST2000NM0023 ", Size: " 1.8T "}
	k := d.Identity()
	if k.Serial != "Z9Y8X7W6" || k.Model != "ST2000NM0023" || k.Size != "1.8T" {
		t.Errorf("Identity = %+v", k)
	}
}

func TestNormalizeMountpoints(t *testing.T) {
	points := map[string]struct{}{
		"/var":      {},
		"/":         {},
		"/boot/efi": {},
	}
	got := NormalizeMountpoints(points)
	want := []string{"/", "/boot/efi", "/var"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if NormalizeMountpoints(nil) != nil {
		t.Error("empty set did not normalize to nil")
	}
}

func TestOrUnknown(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "UNKNOWN"},
		{"   ", "UNKNOWN"},
		{" SERIAL1 ", "SERIAL1"},
	}
	for _, tt := range tests {
		if got := OrUnknown(tt.in); got != tt.want {
			t.Errorf("OrUnknown(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
