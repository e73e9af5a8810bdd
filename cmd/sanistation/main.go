package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/hwerner/sanistation/internal/config"
	"github.com/hwerner/sanistation/internal/resolve"
	"github.com/hwerner/sanistation/internal/scan"
	"github.com/hwerner/sanistation/internal/storcli"
	"github.com/hwerner/sanistation/internal/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sanistation",
	Short: "Drive sanitization workstation tool",
	Long: `Sanistation discovers storage drives across the kernel block-device
tree and RAID controllers, resolves controller-attached drives to their
kernel paths, and runs benchmark, surface-test and erase tools against
validated targets only. Erasures are recorded in an audit log.`,
	Version: fmt.Sprintf("%s (%s)", version.Version, version.GitCommit),
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover drives and show the unified device list",
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")
		showAll, _ := cmd.Flags().GetBool("all")

		cfg := loadConfig()
		result := scan.All(context.Background(), scan.Options{
			IncludeSystem: showAll || cfg.ShowSystemDisks,
			SudoPassword:  cfg.SudoPassword,
			Refresh:       true,
		})

		for _, warning := range result.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", warning)
		}

		if jsonOut {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.Encode(result.Devices)
			return
		}
		printDeviceTable(result)
	},
}

var jbodCmd = &cobra.Command{
	Use:   "jbod",
	Short: "Set all controller drives to JBOD mode",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		client := storcli.New(cfg.SudoPassword)
		ctx := context.Background()

		controllers, err := client.ListControllers(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing controllers: %v\n", err)
			os.Exit(1)
		}
		for _, ctrl := range controllers {
			err := client.SetAllJBOD(ctx, ctrl.ID)
			switch {
			case errors.Is(err, storcli.ErrCommandUnsupported):
				fmt.Printf("c%d: JBOD not supported or already set\n", ctrl.ID)
			case err != nil:
				fmt.Fprintf(os.Stderr, "c%d: %v\n", ctrl.ID, err)
				os.Exit(1)
			default:
				fmt.Printf("c%d: all drives set to JBOD\n", ctrl.ID)
			}
		}
	},
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if pw := os.Getenv("SANISTATION_SUDO_PASSWORD"); pw != "" {
		cfg.SudoPassword = pw
	}
	if cfg.StorcliBin != "" {
		storcli.DefaultBin = cfg.StorcliBin
	}
	return cfg
}

func printDeviceTable(result scan.Result) {
	color := isatty.IsTerminal(os.Stdout.Fd())

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BAY\tPATH\tSIZE\tMODEL\tSERIAL\tTRANSPORT\tSYSTEM\tERASE\tTARGET")
	for _, dev := range result.Devices {
		system := ""
		if dev.IsSystem {
			system = "yes"
		}
		erase := ""
		if dev.EraseAllowed {
			erase = "yes"
		}
		target := dev.ResolvedTarget

		line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s",
			dev.Label, dev.Path, displaySize(dev.Size), dev.Model, dev.Serial,
			dev.Transport, system, erase, target)
		if color && dev.IsSystem {
			line = "\x1b[31m" + line + "\x1b[0m"
		}
		fmt.Fprintln(w, line)
	}
	w.Flush()
}

// displaySize normalizes the mixed size formats of lsblk and storcli for
// the table; unparseable sizes pass through as reported.
func displaySize(size string) string {
	bytes := resolve.SizeToBytes(size)
	if bytes <= 0 {
		return size
	}
	return humanize.Bytes(uint64(bytes))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/sanistation/config.yaml)")

	scanCmd.Flags().Bool("json", false, "Output as JSON")
	scanCmd.Flags().Bool("all", false, "Include system disks")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(jbodCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(eraseCmd)
	rootCmd.AddCommand(badblocksCmd)
	rootCmd.AddCommand(nwipeCmd)
	rootCmd.AddCommand(fioCmd)
	rootCmd.AddCommand(logCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
