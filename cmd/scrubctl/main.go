// scrubctl is the operator CLI for the scrublog pipeline: inspecting the
// dead letter stream and fetching persisted entries. These are the manual
// administrative actions the pipeline itself never performs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scrublog-systems/scrublog/internal/config"
	"github.com/scrublog-systems/scrublog/internal/queue"
	"github.com/scrublog-systems/scrublog/internal/store"
	"github.com/scrublog-systems/scrublog/pkg/messaging"

	natsclient "github.com/scrublog-systems/scrublog/pkg/messaging/nats"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "scrubctl",
		Short: "Operator tooling for the scrublog pipeline",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	root.AddCommand(dlqCmd())
	root.AddCommand(entryCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

func queueOptions(cfg *config.Config) queue.Options {
	return queue.Options{
		Stream:        cfg.Queue.Stream,
		SubjectPrefix: cfg.Queue.SubjectPrefix,
		DLQStream:     cfg.Queue.DLQStream,
		DLQSubject:    cfg.Queue.DLQSubject,
		Consumer:      cfg.Queue.Consumer,
		MaxDeliver:    cfg.Queue.MaxDeliver,
		AckWait:       cfg.Queue.AckWait,
		NakDelay:      cfg.Queue.NakDelay,
		MaxAckPending: cfg.Queue.MaxAckPending,
	}
}

func newInspector(ctx context.Context, cfg *config.Config) (*queue.Inspector, func(), error) {
	js, err := natsclient.NewJetStreamClient(natsclient.Config{
		URL:           cfg.NATS.URL,
		Name:          "scrubctl",
		MaxReconnects: 3,
		ReconnectWait: time.Second,
		Timeout:       5 * time.Second,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}

	inspector, err := queue.NewInspector(ctx, js, queueOptions(cfg))
	if err != nil {
		js.Close()
		return nil, nil, err
	}

	return inspector, func() { js.Close() }, nil
}

func dlqCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect the dead letter stream",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List dead lettered envelopes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			inspector, cleanup, err := newInspector(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := inspector.List(ctx, cfg.Queue.DLQSubject, limit)
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Println("dead letter stream is empty")
				return nil
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 100, "maximum entries to list")

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove all entries from the dead letter stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			inspector, cleanup, err := newInspector(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := inspector.Purge(ctx); err != nil {
				return err
			}
			fmt.Println("dead letter stream purged")
			return nil
		},
	}

	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow dead letters as they arrive (Ctrl-C to stop)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			client, err := natsclient.NewClient(natsclient.Config{
				URL:           cfg.NATS.URL,
				Name:          "scrubctl-tail",
				MaxReconnects: 3,
				ReconnectWait: time.Second,
				Timeout:       5 * time.Second,
			})
			if err != nil {
				return fmt.Errorf("connect to NATS: %w", err)
			}
			defer client.Close()

			enc := json.NewEncoder(os.Stdout)
			sub, err := client.Subscribe(cfg.Queue.DLQSubject+".>", func(ctx context.Context, msg *messaging.Message) error {
				var entry queue.DeadLetter
				if err := json.Unmarshal(msg.Data, &entry); err != nil {
					fmt.Fprintf(os.Stderr, "undecodable dead letter on %s: %v\n", msg.Subject, err)
					return nil
				}
				return enc.Encode(entry)
			})
			if err != nil {
				return fmt.Errorf("subscribe: %w", err)
			}
			defer sub.Unsubscribe()

			fmt.Fprintf(os.Stderr, "tailing %s.>\n", cfg.Queue.DLQSubject)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return nil
		},
	}

	cmd.AddCommand(listCmd, purgeCmd, tailCmd)
	return cmd
}

func entryCmd() *cobra.Command {
	var tenantID, logID string

	cmd := &cobra.Command{
		Use:   "entry",
		Short: "Fetch a persisted entry by (tenant, log id)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			pgStore, err := store.NewPostgresStore(ctx, cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pgStore.Close()

			entry, err := pgStore.Get(ctx, tenantID, logID)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entry)
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant identifier (required)")
	cmd.Flags().StringVar(&logID, "log-id", "", "log identifier (required)")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("log-id")

	return cmd
}
