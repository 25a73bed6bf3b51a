package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-efiboot/internal/config"
	"github.com/deploymenttheory/go-efiboot/internal/firmware/emulator"
	"github.com/deploymenttheory/go-efiboot/pkg/app"
)

var (
	// Global output flags
	verbose      bool
	quiet        bool
	outputFormat string

	// Configuration sources
	configFile  string
	machineFile string
	envFile     string

	// Scripted console input, overrides machine.keys
	keys string

	cfg    *config.Config
	logger = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "go-efiboot",
	Short: "Early-boot firmware interaction core for a minimal OS loader",
	Long: `go-efiboot drives the firmware-facing half of an OS loader: memory map
retrieval, ACPI root pointer discovery and file-system navigation, plus the
fixed boot sequence that ties them together.

Commands run against an emulated firmware described by configuration
(efiboot.yaml or --machine), with volumes backed by host directories or
in-memory file systems.

Commands:
  boot        Run the boot sequence
  memmap      Print the firmware memory map
  acpi        List configuration tables and locate the ACPI root pointer
  ls          List a directory on a volume
  find        Locate a file on a volume`,
	Version:       "0.1.0-dev",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configureLogger()
		loaded, err := config.Load(config.Options{
			ConfigFile:  configFile,
			MachineFile: machineFile,
			EnvFile:     envFile,
		})
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("keys") {
			loaded.Machine.Keys = keys
		}
		cfg = loaded
		logger.WithFields(logrus.Fields{
			"vendor":  cfg.Machine.FirmwareVendor,
			"volumes": len(cfg.Machine.Volumes),
		}).Debug("configuration loaded")
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output except errors")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default searches for efiboot.yaml)")
	rootCmd.PersistentFlags().StringVar(&machineFile, "machine", "", "machine description file replacing the machine section")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file loaded before configuration")
	rootCmd.PersistentFlags().StringVar(&keys, "keys", "", "keystrokes typed on the emulated console, machine.key_delay apart")

	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}

func configureLogger() {
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	switch {
	case verbose:
		logger.SetLevel(logrus.DebugLevel)
	case quiet:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.WarnLevel)
	}
}

// newFirmwareContext builds the emulated machine and a boot context over it.
func newFirmwareContext(mirrorConsole bool) (*app.Context, *emulator.Machine, error) {
	opts := []emulator.Option{emulator.WithLogger(logger), emulator.WithAutoKey('\r')}
	if mirrorConsole && !quiet {
		opts = append(opts, emulator.WithConsoleOutput(os.Stdout))
	}
	machine, err := emulator.New(cfg.Machine, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create firmware: %w", err)
	}
	ctx := app.NewContext(machine.ImageHandle(), machine).WithLogger(logger)
	return ctx, machine, nil
}

// GetOutputFormat returns the output format
func GetOutputFormat() string {
	return outputFormat
}
