package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/punchflow/punchflow/internal/attendance/domain"
	"github.com/punchflow/punchflow/internal/attendance/events"
	"github.com/punchflow/punchflow/internal/attendance/repository"
	"github.com/punchflow/punchflow/internal/attendance/service"
	"github.com/punchflow/punchflow/pkg/config"
	"github.com/punchflow/punchflow/pkg/database"
	"github.com/punchflow/punchflow/pkg/logger"
	"github.com/punchflow/punchflow/pkg/messaging"
	"github.com/spf13/cobra"
)

type runOptions struct {
	sources   service.Sources
	hard      bool
	gregorian bool
	quiet     bool
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load the punch, shift and driver exports and rebuild the integrated view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.sources.PunchFile, "punch", "", "punch export (default sources.punch_file)")
	cmd.Flags().StringVar(&opts.sources.ShiftFile, "shift", "", "shift assignment workbook (default sources.shift_file)")
	cmd.Flags().StringVar(&opts.sources.DriverFile, "driver", "", "driver roster (default sources.driver_file)")
	cmd.Flags().BoolVar(&opts.hard, "hard", false, "drop rows that fail validation instead of loading them")
	cmd.Flags().BoolVar(&opts.gregorian, "gregorian", false, "accept 8-digit Gregorian dates")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not print progress")

	return cmd
}

func (a *app) run(ctx context.Context, out io.Writer, opts runOptions) error {
	cfg := *a.cfg
	if opts.hard {
		cfg.Validation.Mode = config.ModeHard
	}
	if opts.gregorian {
		cfg.Validation.AcceptGregorianDates = true
	}

	pub, closePub := openPublisher(&cfg, a.log)
	defer closePub()

	var progress service.ProgressFunc
	if !opts.quiet {
		progress = func(status string) { fmt.Fprintln(out, status) }
	}

	res, err := Execute(ctx, &cfg, withDefaults(&cfg, opts.sources), pub, progress, a.log)
	if res != nil {
		fmt.Fprint(out, res.Summary(cfg.Validation.MaxReported))
	}
	return err
}

// Execute runs the pipeline once. The store is opened for the run and
// closed before returning. pub may be nil.
func Execute(ctx context.Context, cfg *config.Config, src service.Sources, pub events.Publisher, progress service.ProgressFunc, log *logger.Logger) (*domain.RunResult, error) {
	plans, err := service.CompilePlans(cfg.Entities, cfg.Validation)
	if err != nil {
		return nil, err
	}

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	p := service.NewPipeline(repository.NewStore(db, log), plans, events.NewNotifier(pub, log), log)
	p.OnProgress(progress)
	return p.Run(ctx, src)
}

// openPublisher connects to RabbitMQ when it is enabled. An unreachable
// broker only disables run events.
func openPublisher(cfg *config.Config, log *logger.Logger) (events.Publisher, func()) {
	if !cfg.RabbitMQ.Enabled {
		return nil, func() {}
	}

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq unavailable, run events disabled")
		return nil, func() {}
	}

	pub, err := messaging.NewPublisher(rmq, cfg.RabbitMQ.Exchange, ServiceName, log)
	if err != nil {
		log.Warn().Err(err).Msg("failed to create event publisher, run events disabled")
		rmq.Close()
		return nil, func() {}
	}
	return pub, func() { rmq.Close() }
}
