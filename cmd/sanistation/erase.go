package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hwerner/sanistation/internal/config"
	"github.com/hwerner/sanistation/internal/device"
	"github.com/hwerner/sanistation/internal/runner"
	"github.com/hwerner/sanistation/internal/scan"
	"github.com/hwerner/sanistation/internal/target"
	"github.com/hwerner/sanistation/internal/wipelog"
)

var planCmd = &cobra.Command{
	Use:   "plan <device>",
	Short: "Print the secure-erase command plan for a drive without running it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		standard, _ := cmd.Flags().GetString("standard")
		cfg := loadConfig()
		if standard == "" {
			standard = cfg.DefaultEraseStandard
		}

		dev := mustFindEraseDevice(cfg, args[0])
		resolver := target.NewResolver(cfg.SudoPassword)

		plan, err := runner.PlanSecureErase(context.Background(), resolver, dev, standard)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Target:   %s\n", plan.Target)
		fmt.Printf("Standard: %s\n", runner.StandardLabel(plan.Standard))
		fmt.Printf("Method:   %s\n", plan.Method)
		if plan.MappingHint != "" {
			fmt.Printf("Mapping:  %s\n", plan.MappingHint)
		}
		fmt.Println("Commands:")
		for _, argv := range plan.Commands {
			fmt.Printf("  %s\n", strings.Join(argv, " "))
		}
	},
}

var eraseCmd = &cobra.Command{
	Use:   "erase <device>",
	Short: "Securely erase a drive (DESTROYS ALL DATA)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		standard, _ := cmd.Flags().GetString("standard")
		yes, _ := cmd.Flags().GetBool("yes")
		cfg := loadConfig()
		if standard == "" {
			standard = cfg.DefaultEraseStandard
		}

		dev := mustFindEraseDevice(cfg, args[0])
		resolver := target.NewResolver(cfg.SudoPassword)
		ctx := context.Background()

		plan, err := runner.PlanSecureErase(ctx, resolver, dev, standard)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if !yes && !confirm(fmt.Sprintf("Erase %s (%s %s, serial %s)? All data will be destroyed",
			plan.Target, dev.Model, dev.Size, dev.Serial)) {
			fmt.Println("Aborted.")
			return
		}

		exec := runner.NewExecutor(cfg.SudoPassword)
		result := plan.Execute(ctx, resolver, exec)
		recordRun(cfg, dev, result, plan.Method)
		reportResult(result)
	},
}

var badblocksCmd = &cobra.Command{
	Use:   "badblocks <device>",
	Short: "Run a badblocks surface scan against a drive",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mode, _ := cmd.Flags().GetString("mode")
		yes, _ := cmd.Flags().GetBool("yes")
		cfg := loadConfig()
		if mode == "" {
			mode = cfg.DefaultBadblocksMode
		}

		destructive := mode == "destructive"
		var dev device.Device
		if destructive {
			dev = mustFindEraseDevice(cfg, args[0])
		} else {
			dev = mustFindDevice(cfg, args[0])
		}
		if destructive && !yes && !confirm(fmt.Sprintf("Run destructive badblocks on %s? All data will be destroyed", dev.Path)) {
			fmt.Println("Aborted.")
			return
		}

		resolver := target.NewResolver(cfg.SudoPassword)
		exec := runner.NewExecutor(cfg.SudoPassword)

		result, err := runner.RunBadblocks(context.Background(), resolver, exec, dev, mode)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if destructive {
			recordRun(cfg, dev, result, "badblocks")
		}
		if result.Stdout != "" {
			fmt.Println(result.Stdout)
		}
		reportResult(result)
	},
}

var nwipeCmd = &cobra.Command{
	Use:   "nwipe <device> [device...]",
	Short: "Wipe one or more drives with nwipe (DESTROYS ALL DATA)",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		standard, _ := cmd.Flags().GetString("standard")
		yes, _ := cmd.Flags().GetBool("yes")
		cfg := loadConfig()
		if standard == "" {
			standard = cfg.DefaultEraseStandard
		}

		devs := make([]device.Device, 0, len(args))
		for _, arg := range args {
			devs = append(devs, mustFindEraseDevice(cfg, arg))
		}

		if !yes && !confirm(fmt.Sprintf("Wipe %d drive(s) with nwipe? All data will be destroyed", len(devs))) {
			fmt.Println("Aborted.")
			return
		}

		resolver := target.NewResolver(cfg.SudoPassword)
		exec := runner.NewExecutor(cfg.SudoPassword)

		result, err := runner.RunNwipe(context.Background(), resolver, exec, devs, standard)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		for _, dev := range devs {
			recordRun(cfg, dev, result, "nwipe")
		}
		reportResult(result)
	},
}

var fioCmd = &cobra.Command{
	Use:   "fio <device>",
	Short: "Benchmark a drive with fio",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		preset, _ := cmd.Flags().GetString("preset")
		yes, _ := cmd.Flags().GetBool("yes")
		cfg := loadConfig()
		if preset == "" {
			preset = cfg.DefaultFioPreset
		}

		destructive := preset != "quick-read"
		var dev device.Device
		if destructive {
			dev = mustFindEraseDevice(cfg, args[0])
		} else {
			dev = mustFindDevice(cfg, args[0])
		}
		if destructive && !yes && !confirm(fmt.Sprintf("Run write benchmark %q on %s? Existing data will be overwritten", preset, dev.Path)) {
			fmt.Println("Aborted.")
			return
		}

		resolver := target.NewResolver(cfg.SudoPassword)
		exec := runner.NewExecutor(cfg.SudoPassword)

		result, err := runner.RunFio(context.Background(), resolver, exec, dev, preset)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if result.Metrics.Complete {
			fmt.Printf("Bandwidth: %.1f MB/s\n", result.Metrics.BandwidthMBs)
			fmt.Printf("IOPS:      %.0f\n", result.Metrics.IOPS)
			fmt.Printf("Latency:   %.2f ms\n", result.Metrics.LatencyMs)
		} else {
			fmt.Println("Benchmark finished but some metrics are missing:")
			fmt.Println(result.Stdout)
		}
		reportResult(result.Result)
	},
}

// mustFindDevice scans and returns the device whose label, kernel path or
// controller slot matches key. Exits on no match.
func mustFindDevice(cfg *config.Config, key string) device.Device {
	result := scan.All(context.Background(), scan.Options{
		IncludeSystem: true,
		SudoPassword:  cfg.SudoPassword,
		Refresh:       true,
	})
	for _, warning := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", warning)
	}
	for _, dev := range result.Devices {
		if dev.Path == key || dev.Label == key || dev.Addr.EIDSlt() == key {
			return dev
		}
	}
	fmt.Fprintf(os.Stderr, "Error: no device matches %q (try 'sanistation scan --all')\n", key)
	os.Exit(1)
	return device.Device{}
}

// mustFindEraseDevice is mustFindDevice plus the erase fence: only
// controller-attached drives may be destroyed.
func mustFindEraseDevice(cfg *config.Config, key string) device.Device {
	dev := mustFindDevice(cfg, key)
	if !dev.EraseAllowed {
		fmt.Fprintf(os.Stderr, "Error: %s is not eligible for destructive operations (kernel or system disk)\n", key)
		os.Exit(1)
	}
	return dev
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func reportResult(r runner.Result) {
	if r.OK {
		fmt.Printf("OK: %s completed on %s\n", r.Method, r.Target)
		return
	}
	fmt.Fprintf(os.Stderr, "FAILED: %s on %s: %s\n", r.Method, r.Target, r.Error)
	if r.Stderr != "" {
		fmt.Fprintln(os.Stderr, r.Stderr)
	}
	os.Exit(1)
}

// recordRun writes one audit record to the sqlite store and the CSV log.
// Logging failures are reported but never mask the run result.
func recordRun(cfg *config.Config, dev device.Device, result runner.Result, tool string) {
	rec := &wipelog.Record{
		Bay:         dev.Label,
		DevicePath:  dev.Path,
		Target:      result.Target,
		MappingHint: result.MappingHint,
		Size:        dev.Size,
		Model:       dev.Model,
		Serial:      dev.Serial,
		Transport:   dev.Transport,
		Method:      result.Method,
		Standard:    result.Standard,
		Tool:        tool,
		Command:     result.Command,
		OK:          result.OK,
		Error:       result.Error,
		StartedAt:   result.StartedAt,
		FinishedAt:  result.FinishedAt,
	}

	store, err := wipelog.Open(cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: audit store unavailable: %v\n", err)
	} else {
		defer store.Close()
		if err := store.Insert(rec); err != nil {
			fmt.Fprintf(os.Stderr, "warning: audit record not saved: %v\n", err)
		}
	}

	if err := wipelog.AppendCSV(cfg.WipeLogPath(), rec); err != nil {
		fmt.Fprintf(os.Stderr, "warning: CSV log not written: %v\n", err)
	}
}

func init() {
	planCmd.Flags().String("standard", "", "Erase standard (zero-fill, dod-3pass, dod-7pass, secure-erase, secure-erase-enhanced)")

	eraseCmd.Flags().String("standard", "", "Erase standard")
	eraseCmd.Flags().Bool("yes", false, "Skip confirmation prompt")

	badblocksCmd.Flags().String("mode", "", "Scan mode (read-only or destructive)")
	badblocksCmd.Flags().Bool("yes", false, "Skip confirmation prompt")

	nwipeCmd.Flags().String("standard", "", "Wipe standard (zero-fill, dod-3pass, dod-7pass)")
	nwipeCmd.Flags().Bool("yes", false, "Skip confirmation prompt")

	fioCmd.Flags().String("preset", "", "Benchmark preset (quick-read, quick-write, random, full)")
	fioCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
}
