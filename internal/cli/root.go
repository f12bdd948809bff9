// Package cli implements the punchflow command line.
package cli

import (
	"github.com/punchflow/punchflow/internal/attendance/service"
	"github.com/punchflow/punchflow/pkg/config"
	"github.com/punchflow/punchflow/pkg/logger"
	"github.com/spf13/cobra"
)

// ServiceName names the configuration file and the log source.
const ServiceName = "punchflow"

// skipCheck marks commands that must run on an invalid configuration.
const skipCheck = "punchflow/skip-check"

type app struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log *logger.Logger
}

// NewRootCommand builds the punchflow command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "punchflow",
		Short:         "Load attendance punch exports into a queryable store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default ./config/punchflow.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(
		newRunCmd(a),
		newServeCmd(a),
		newQueryCmd(a),
		newWorkerCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	load := config.LoadWithValidation
	if _, skip := cmd.Annotations[skipCheck]; skip {
		load = config.LoadFile
	}
	cfg, err := load(ServiceName, a.configPath)
	if err != nil {
		return err
	}

	logger.SetLevel(a.logLevel)
	a.cfg = cfg
	a.log = logger.New(ServiceName, cfg.Server.Environment)
	return nil
}

// withDefaults fills empty paths in src from the configured sources.
func withDefaults(cfg *config.Config, src service.Sources) service.Sources {
	if src.PunchFile == "" {
		src.PunchFile = cfg.Sources.PunchFile
	}
	if src.ShiftFile == "" {
		src.ShiftFile = cfg.Sources.ShiftFile
	}
	if src.DriverFile == "" {
		src.DriverFile = cfg.Sources.DriverFile
	}
	return src
}
