package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hwerner/sanistation/internal/wipelog"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent erase audit records",
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		serial, _ := cmd.Flags().GetString("serial")
		cfg := loadConfig()

		store, err := wipelog.Open(cfg.DatabasePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening audit store: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		var records []*wipelog.Record
		if serial != "" {
			records, err = store.BySerial(serial)
		} else {
			records, err = store.Recent(limit)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading audit store: %v\n", err)
			os.Exit(1)
		}
		if len(records) == 0 {
			fmt.Println("No audit records.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tTARGET\tMODEL\tSERIAL\tTOOL\tSTANDARD\tOK")
		for _, rec := range records {
			ok := "no"
			if rec.OK {
				ok = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				rec.StartedAt.Format("2006-01-02 15:04:05"),
				rec.Target, rec.Model, rec.Serial, rec.Tool, rec.Standard, ok)
		}
		w.Flush()
	},
}

func init() {
	logCmd.Flags().Int("limit", 20, "Maximum number of records to show")
	logCmd.Flags().String("serial", "", "Show records for one drive serial")
}
