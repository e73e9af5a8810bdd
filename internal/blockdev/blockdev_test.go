package blockdev

import (
	"testing"
)

const lsblkFixture = `{
  "blockdevices": [
    {
      "name": "sda", "path": "/dev/sda", "type": "disk", "size": "447.1G",
      "model": "Samsung SSD 860", "serial": "S3Z8NB0K123456", "tran": "sata",
      "rm": false, "hotplug": false, "mountpoint": null,
      "children": [
        {"name": "sda1", "path": "/dev/sda1", "type": "part", "size": "512M", "mountpoint": "/boot/efi"},
        {"name": "sda2", "path": "/dev/sda2", "type": "part", "size": "446.6G", "mountpoints": ["/", "/var/lib"]}
      ]
    },
    {
      "name": "sdb", "path": "/dev/sdb", "type": "disk", "size": "1.8T",
      "model": "ST2000NM0023", "serial": "Z1X2C3V4", "tran": "sas",
      "rm": false, "hotplug": true, "mountpoint": null
    },
    {
      "name": "sdc", "path": "/dev/sdc", "type": "disk", "size": "14.9G",
      "model": "DataTraveler", "serial": "08606E6D", "tran": "usb",
      "rm": true, "hotplug": true, "mountpoint": "/media/usb0"
    },
    {
      "name": "sr0", "path": "/dev/sr0", "type": "rom", "size": "1024M",
      "model": "DVD-ROM", "tran": "sata"
    },
    {
      "name": "loop0", "path": "/dev/loop0", "type": "loop", "size": "4K"
    }
  ]
}`

func TestParseLsblk(t *testing.T) {
	disks, err := ParseLsblk([]byte(lsblkFixture))
	if err != nil {
		t.Fatalf("ParseLsblk: %v", err)
	}
	if len(disks) != 3 {
		t.Fatalf("got %d disks, want 3 (rom and loop excluded)", len(disks))
	}

	sda := disks[0]
	if sda.Path != "/dev/sda" {
		t.Errorf("sda path = %q", sda.Path)
	}
	if !sda.Addr.IsKernel() {
		t.Error("sda address not kernel kind")
	}
	wantMounts := []string{"/", "/boot/efi", "/var/lib"}
	if len(sda.Mountpoints) != len(wantMounts) {
		t.Fatalf("sda mountpoints = %v, want %v", sda.Mountpoints, wantMounts)
	}
	for i, mp := range wantMounts {
		if sda.Mountpoints[i] != mp {
			t.Errorf("sda mountpoints[%d] = %q, want %q", i, sda.Mountpoints[i], mp)
		}
	}
	if !sda.IsSystem {
		t.Error("sda not flagged as system disk")
	}
	if sda.EraseAllowed {
		t.Error("sda erase allowed")
	}

	sdb := disks[1]
	if sdb.IsSystem {
		t.Error("unmounted sas disk flagged as system")
	}
	if sdb.EraseAllowed {
		t.Error("kernel disk erase allowed")
	}
	if sdb.Transport != "sas" {
		t.Errorf("sdb transport = %q, want sas", sdb.Transport)
	}

	sdc := disks[2]
	// /media/usb0 nests under the protected "/" mountpoint.
	if !sdc.IsSystem {
		t.Error("mounted usb stick not flagged as system")
	}
}

func TestParseLsblkStringTypedFlags(t *testing.T) {
	// util-linux before 2.37 emits every lsblk -J value as a string,
	// including the rm and hotplug flags.
	fixture := `{
	  "blockdevices": [
	    {"name": "sda", "path": "/dev/sda", "type": "disk", "size": "1.8T",
	     "model": "ST2000NM0023", "tran": "sas", "rm": "0", "hotplug": "0"},
	    {"name": "sdb", "path": "/dev/sdb", "type": "disk", "size": "14.9G",
	     "model": "DataTraveler", "tran": "usb", "rm": "1", "hotplug": "1"},
	    {"name": "nvme0n1", "path": "/dev/nvme0n1", "type": "disk", "size": "931.5G",
	     "model": "WD Black", "tran": "nvme", "rm": "0", "hotplug": "0"}
	  ]
	}`
	disks, err := ParseLsblk([]byte(fixture))
	if err != nil {
		t.Fatalf("ParseLsblk: %v", err)
	}
	if len(disks) != 3 {
		t.Fatalf("got %d disks, want 3", len(disks))
	}
	// "0"/"1" carry through to classification: the internal non-removable
	// non-hotplug NVMe disk is a system disk, the removable USB stick is not.
	if disks[2].Path != "/dev/nvme0n1" || !disks[2].IsSystem {
		t.Errorf("nvme disk = %+v, want is_system", disks[2])
	}
	if disks[1].IsSystem {
		t.Errorf("usb stick flagged as system: %+v", disks[1])
	}
}

func TestParseLsblkMissingPath(t *testing.T) {
	disks, err := ParseLsblk([]byte(`{"blockdevices":[{"name":"sdx","type":"disk","size":"1.8T"}]}`))
	if err != nil {
		t.Fatalf("ParseLsblk: %v", err)
	}
	if len(disks) != 1 || disks[0].Path != "/dev/sdx" {
		t.Errorf("got %+v, want path /dev/sdx synthesized from name", disks)
	}
}

func TestParseLsblkMalformed(t *testing.T) {
	if _, err := ParseLsblk([]byte("not json")); err == nil {
		t.Error("ParseLsblk accepted malformed input")
	}
	disks, err := ParseLsblk([]byte(`{}`))
	if err != nil || len(disks) != 0 {
		t.Errorf("empty tree: disks=%v err=%v", disks, err)
	}
}
