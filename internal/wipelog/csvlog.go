package wipelog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// csvFields is the fixed column set of wipe_log.csv. Order matters: the
// file is consumed by downstream certificate tooling.
var csvFields = []string{
	"timestamp",
	"start_timestamp",
	"end_timestamp",
	"bay",
	"device_path",
	"target",
	"size",
	"model",
	"serial",
	"transport",
	"erase_method",
	"erase_standard",
	"erase_tool",
	"erase_ok",
	"command",
	"mapping_hint",
}

const timeLayout = "2006-01-02 15:04:05"

// AppendCSV appends one record to the semicolon-separated wipe log,
// creating the file with a header row when needed.
func AppendCSV(path string, r *Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	_, statErr := os.Stat(path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = ';'

	if writeHeader {
		if err := w.Write(csvFields); err != nil {
			return err
		}
	}

	row := []string{
		r.FinishedAt.Format(timeLayout),
		r.StartedAt.Format(timeLayout),
		r.FinishedAt.Format(timeLayout),
		r.Bay,
		r.DevicePath,
		r.Target,
		r.Size,
		r.Model,
		r.Serial,
		r.Transport,
		r.Method,
		r.Standard,
		r.Tool,
		fmt.Sprintf("%t", r.OK),
		r.Command,
		r.MappingHint,
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
