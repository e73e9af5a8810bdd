package wipelog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sampleRecord(serial string, ok bool) *Record {
	started := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	return &Record{
		Bay:         "C0 PD 8:2",
		DevicePath:  "/dev/megaraid/0/8:2",
		Target:      "/dev/sdc",
		MappingHint: "MegaRAID Mapping: /dev/megaraid/0/8:2 → /dev/sdc",
		Size:        "1.818 TB",
		Model:       "ST2000NM0023",
		Serial:      serial,
		Transport:   "storcli:SAS",
		Method:      "Secure Erase",
		Standard:    "secure-erase",
		Tool:        "hdparm",
		Command:     "sudo hdparm --security-erase PASS /dev/sdc",
		OK:          ok,
		StartedAt:   started,
		FinishedAt:  started.Add(45 * time.Minute),
	}
}

func TestStoreInsertAndRecent(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	first := sampleRecord("Z9Y8X7W6", true)
	if err := store.Insert(first); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if first.RunID == "" {
		t.Error("Insert did not assign a run ID")
	}
	if first.ID == 0 {
		t.Error("Insert did not assign a row ID")
	}

	second := sampleRecord("Z1X2C3V4", false)
	second.Error = "SG_IO: bad/missing sense data"
	second.FinishedAt = first.FinishedAt.Add(time.Hour)
	if err := store.Insert(second); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	records, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Serial != "Z1X2C3V4" {
		t.Errorf("newest first: got %q", records[0].Serial)
	}
	if records[0].OK {
		t.Error("failed run read back as OK")
	}
	if records[1].Target != "/dev/sdc" {
		t.Errorf("Target = %q", records[1].Target)
	}
}

func TestStoreBySerial(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	for _, serial := range []string{"AAA1", "BBB2", "AAA1"} {
		if err := store.Insert(sampleRecord(serial, true)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	records, err := store.BySerial("AAA1")
	if err != nil {
		t.Fatalf("BySerial: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}
	records, err = store.BySerial("NOPE")
	if err != nil || len(records) != 0 {
		t.Errorf("unknown serial: records=%v err=%v", records, err)
	}
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Insert(sampleRecord("Z9Y8X7W6", true)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	store.Close()

	// Migrations are idempotent and data survives reopening.
	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	records, err := store.Recent(10)
	if err != nil || len(records) != 1 {
		t.Errorf("after reopen: records=%d err=%v", len(records), err)
	}
}

func TestAppendCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "wipe_log.csv")

	if err := AppendCSV(path, sampleRecord("Z9Y8X7W6", true)); err != nil {
		t.Fatalf("AppendCSV: %v", err)
	}
	if err := AppendCSV(path, sampleRecord("Z1X2C3V4", false)); err != nil {
		t.Fatalf("AppendCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = ';'
	rows, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2 records", len(rows))
	}

	header := rows[0]
	if len(header) != len(csvFields) {
		t.Fatalf("header has %d columns, want %d", len(header), len(csvFields))
	}
	if header[0] != "timestamp" || header[len(header)-1] != "mapping_hint" {
		t.Errorf("header = %v", header)
	}

	row := rows[1]
	if row[5] != "/dev/sdc" {
		t.Errorf("target column = %q", row[5])
	}
	if row[8] != "Z9Y8X7W6" {
		t.Errorf("serial column = %q", row[8])
	}
	if row[13] != "true" {
		t.Errorf("erase_ok column = %q", row[13])
	}
	if rows[2][13] != "false" {
		t.Errorf("erase_ok column = %q", rows[2][13])
	}
	if row[0] != "2026-03-14 11:15:00" {
		t.Errorf("timestamp column = %q", row[0])
	}
}
