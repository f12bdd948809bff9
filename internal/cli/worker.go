package cli

import (
	"context"
	"fmt"

	"github.com/punchflow/punchflow/internal/attendance/events"
	"github.com/punchflow/punchflow/internal/attendance/service"
	"github.com/punchflow/punchflow/pkg/config"
	"github.com/punchflow/punchflow/pkg/logger"
	"github.com/punchflow/punchflow/pkg/messaging"
	"github.com/spf13/cobra"
)

func newWorkerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the pipeline for every attendance.etl.requested event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.work(cmd.Context())
		},
	}
}

func (a *app) work(ctx context.Context) error {
	if !a.cfg.RabbitMQ.Enabled {
		return fmt.Errorf("worker needs rabbitmq.enabled")
	}

	rmq, err := messaging.New(&a.cfg.RabbitMQ, a.log)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer rmq.Close()

	pub, err := messaging.NewPublisher(rmq, a.cfg.RabbitMQ.Exchange, ServiceName, a.log)
	if err != nil {
		return err
	}

	consumer, err := messaging.NewConsumer(rmq, a.cfg.RabbitMQ.Queue, a.log)
	if err != nil {
		return err
	}
	if err := consumer.Subscribe(a.cfg.RabbitMQ.Exchange, messaging.EventETLRequested); err != nil {
		return err
	}
	consumer.RegisterHandler(messaging.EventETLRequested, RequestHandler(a.cfg, pub, a.log))

	a.log.Info().Interface("rabbitmq", rmq.Health()).Str("queue", a.cfg.RabbitMQ.Queue).Msg("worker ready")

	for {
		err := consumer.Run(ctx)
		if err == nil || ctx.Err() != nil {
			return nil
		}
		a.log.Warn().Err(err).Msg("consumer stopped, reconnecting")
		if err := rmq.Reconnect(ctx); err != nil {
			return fmt.Errorf("failed to reconnect to RabbitMQ: %w", err)
		}
	}
}

// RequestHandler runs the pipeline for one request. Entity failures are
// already announced by the failed event, so only runs that never reached
// the store are returned as errors and retried.
func RequestHandler(cfg *config.Config, pub events.Publisher, log *logger.Logger) messaging.MessageHandler {
	return func(ctx context.Context, event *messaging.Event) error {
		var req messaging.ETLRequestedEvent
		if err := event.UnmarshalData(&req); err != nil {
			return err
		}

		runCfg := *cfg
		if req.Mode != "" {
			runCfg.Validation.Mode = req.Mode
		}
		src := withDefaults(&runCfg, service.Sources{
			PunchFile:  req.PunchFile,
			ShiftFile:  req.ShiftFile,
			DriverFile: req.DriverFile,
		})

		runLog := log.WithRequestID(event.ID)
		res, err := Execute(ctx, &runCfg, src, pub, func(status string) {
			runLog.Debug().Msg(status)
		}, runLog)
		if err != nil && (res == nil || res.Succeeded()) {
			return err
		}
		if err != nil {
			runLog.Warn().Err(err).Str("run_id", res.RunID).Msg("run finished with failures")
			return nil
		}

		runLog.Info().Str("run_id", res.RunID).Int("integrated", res.Integrated).Msg("run finished")
		return nil
	}
}
