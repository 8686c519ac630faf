package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	cli "github.com/urfave/cli/v3"

	"github.com/unearth4334/vast-api-sub001/pkg/channels/gochannel"
	"github.com/unearth4334/vast-api-sub001/pkg/eventbus"
	"github.com/unearth4334/vast-api-sub001/pkg/events"
	"github.com/unearth4334/vast-api-sub001/pkg/executor"
	"github.com/unearth4334/vast-api-sub001/pkg/log"
	"github.com/unearth4334/vast-api-sub001/pkg/otelhelper"
	"github.com/unearth4334/vast-api-sub001/pkg/registry"
	"github.com/unearth4334/vast-api-sub001/pkg/remote"
	"github.com/unearth4334/vast-api-sub001/pkg/scheduler"
	filestore "github.com/unearth4334/vast-api-sub001/pkg/store/file"
)

const defaultPort = 9191

func main() {
	logger := log.WithModule("provisiond")

	cmd := &cli.Command{
		Name:                  "provisiond",
		Usage:                 "Run provisioning workflows against remote instances",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Directory holding the persisted workflow document",
				Value:   "./data",
				Sources: cli.EnvVars("DATA_DIR"),
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "Interval between progress document reads for monitored steps",
				Value:   executor.DefaultPollInterval,
				Sources: cli.EnvVars("POLL_INTERVAL"),
			},
			&cli.DurationFlag{
				Name:    "grace-period",
				Usage:   "How long terminal workflow state is retained before expiry",
				Value:   scheduler.DefaultGracePeriod,
				Sources: cli.EnvVars("GRACE_PERIOD"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OTLP traces for workflow and step execution",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing provisioning daemon")

			if command.Bool("tracing") {
				if _, err := otelhelper.NewTracer(ctx, "provisiond"); err != nil {
					logger.WarnContext(ctx, "Failed to initialize tracing", "error", err)
				}
			}

			st := filestore.NewStore(command.String("data-dir"), logger)
			client := remote.NewClient(logger)
			reg := registry.Default(logger, client)

			pub, sub := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
			bus := eventbus.NewWatermillEventBus(pub, sub)

			defer func() {
				if err := bus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			if err := registerEventLogging(ctx, bus, logger); err != nil {
				return err
			}

			exec := executor.NewExecutor(reg, st, client, bus, command.Duration("poll-interval"), logger)
			sched := scheduler.NewScheduler(st, reg, exec, bus, command.Duration("grace-period"), logger)

			if err := sched.Reconcile(ctx); err != nil {
				logger.ErrorContext(ctx, "Startup reconciliation failed", "error", err)
			}

			janitor, err := sched.StartJanitor()
			if err != nil {
				return err
			}
			defer janitor.Stop()

			api := NewAPI(logger, sched)
			app := api.App()

			go func() {
				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
				<-sigCh

				logger.Info("Shutting down")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				if err := sched.Shutdown(shutdownCtx); err != nil {
					logger.Error("Failed to shut down scheduler cleanly", "error", err)
				}

				if err := app.Shutdown(); err != nil {
					logger.Error("Failed to shut down server", "error", err)
				}
			}()

			return app.Listen(":" + strconv.Itoa(command.Int("port")))
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

// registerEventLogging subscribes a logging handler to every lifecycle event
// type, so the event stream is observable in the daemon's own output even with
// no external consumers attached.
func registerEventLogging(ctx context.Context, bus eventbus.EventBus, logger *slog.Logger) error {
	eventLogger := logger.With("module", "events")

	logEvent := func(_ context.Context, event any) error {
		carrier, ok := event.(interface{ Meta() events.BaseEvent })
		if !ok {
			return nil
		}

		meta := carrier.Meta()

		if progressEvent, ok := event.(*events.StepProgress); ok {
			eventLogger.Info("Workflow event",
				"type", meta.Type,
				"workflow_id", meta.WorkflowID,
				"step_index", progressEvent.StepIndex,
				"processed", progressEvent.ProcessedItems,
				"total", progressEvent.TotalItems,
				"current_item", progressEvent.CurrentItem)

			return nil
		}

		eventLogger.Info("Workflow event", "type", meta.Type, "workflow_id", meta.WorkflowID)

		return nil
	}

	for _, eventType := range []events.EventType{
		events.WorkflowStartedEvent,
		events.WorkflowCompletedEvent,
		events.WorkflowFailedEvent,
		events.WorkflowCancelledEvent,
		events.StepStartedEvent,
		events.StepProgressEvent,
		events.StepFinishedEvent,
	} {
		if err := bus.Handle(eventType, logEvent); err != nil {
			return err
		}
	}

	return bus.Subscribe(ctx)
}
