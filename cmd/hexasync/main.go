package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/davicafu/hexasync/internal/app"
	"github.com/davicafu/hexasync/internal/config"
	"github.com/davicafu/hexasync/internal/shared/infra/events"
	"github.com/davicafu/hexasync/pkg/logger"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "hexasync",
		Short:         "users, products and orders kept in sync through events",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the yaml config (env vars override it)")
	rootCmd.AddCommand(
		serveCommand(),
		topicsCommand(),
		outboxCommand(),
		deadLettersCommand(),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// load lee la configuración e inicializa el logger global.
func load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.New(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(cfg.Log.Level)
	return cfg, logger.Logger().With(zap.String("app", cfg.App.Name)), nil
}

// withApp abre la aplicación sin arrancar bucles, ejecuta fn y la cierra.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, log, err := load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the three services: HTTP, outbox publishers and consumer groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Run(ctx)
			})
		},
	}
}

func topicsCommand() *cobra.Command {
	var withDLQ bool
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "provision or verify broker topics",
	}
	cmd.PersistentFlags().BoolVar(&withDLQ, "dlq", true, "include the <topic>.dlq quarantine topics")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create",
			Short: "create every producer topic (existing ones are left alone)",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, log, err := load()
				if err != nil {
					return err
				}
				admin, err := events.NewKafkaAdmin(cfg.Kafka.Brokers)
				if err != nil {
					return err
				}
				topics := app.RequiredTopics(cfg.Topology(), withDLQ)
				if err := admin.CreateTopics(topics, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
					return err
				}
				log.Info("✅ Topics creados", zap.Strings("topics", topics))
				return nil
			},
		},
		&cobra.Command{
			Use:   "verify",
			Short: "fail if a configured topic is missing on the broker",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, log, err := load()
				if err != nil {
					return err
				}
				admin, err := events.NewKafkaAdmin(cfg.Kafka.Brokers)
				if err != nil {
					return err
				}
				topics := app.RequiredTopics(cfg.Topology(), withDLQ)
				if err := admin.VerifyTopics(topics); err != nil {
					return err
				}
				log.Info("✅ Topics verificados", zap.Strings("topics", topics))
				return nil
			},
		},
	)
	return cmd
}

func outboxCommand() *cobra.Command {
	var (
		service string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "inspect and requeue outbox records that exhausted their retries",
	}
	cmd.PersistentFlags().StringVarP(&service, "service", "s", app.ServiceOrders, "service owning the outbox")

	failed := &cobra.Command{
		Use:   "failed",
		Short: "list Failed outbox records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				svc, err := a.Service(service)
				if err != nil {
					return err
				}
				records, err := svc.Outbox.ListFailedOutbox(ctx, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd, records)
			})
		},
	}
	failed.Flags().IntVarP(&limit, "limit", "n", 50, "max records")

	requeue := &cobra.Command{
		Use:   "requeue <event-id>",
		Short: "move a Failed record back to Pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid event id %q: %w", args[0], err)
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				svc, err := a.Service(service)
				if err != nil {
					return err
				}
				return svc.Requeue(ctx, id)
			})
		},
	}

	cmd.AddCommand(failed, requeue)
	return cmd
}

func deadLettersCommand() *cobra.Command {
	var (
		service string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "deadletters",
		Short: "inspect quarantined events",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "list the most recent dead letters of a service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				svc, err := a.Service(service)
				if err != nil {
					return err
				}
				dls, err := svc.DeadLetters.List(ctx, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd, dls)
			})
		},
	}
	list.Flags().StringVarP(&service, "service", "s", app.ServiceProducts, "service owning the dead letters")
	list.Flags().IntVarP(&limit, "limit", "n", 50, "max entries")

	cmd.AddCommand(list)
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
