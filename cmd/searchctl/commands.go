package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ThinhVo0/BT4-CNPMM/internal/app"
	"github.com/ThinhVo0/BT4-CNPMM/internal/catalog/seed"
	"github.com/ThinhVo0/BT4-CNPMM/internal/config"
	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
	"github.com/ThinhVo0/BT4-CNPMM/internal/event"
	pkgkafka "github.com/ThinhVo0/BT4-CNPMM/pkg/kafka"
	"github.com/ThinhVo0/BT4-CNPMM/pkg/middleware"
)

func newSyncAllCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-all",
		Short: "Rebuild the index from every active catalog product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withCore(cmd.Context(), func(core *app.Core) error {
				report, err := core.Search.SyncAll(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func newSyncCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <product-id>",
		Short: "Reindex a single product from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCore(cmd.Context(), func(core *app.Core) error {
				action, err := core.Search.SyncOne(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]string{"id": args[0], "status": string(action)})
			})
		},
	}
}

func newRemoveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Delete a product from the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCore(cmd.Context(), func(core *app.Core) error {
				if err := core.Search.Remove(cmd.Context(), args[0]); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]string{"id": args[0], "status": "removed"})
			})
		},
	}
}

func newSuggestCmd(c *cli) *cobra.Command {
	var (
		limit    int
		category string
	)
	cmd := &cobra.Command{
		Use:   "suggest <prefix>",
		Short: "Show autocomplete suggestions for a prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCore(cmd.Context(), func(core *app.Core) error {
				return printJSON(cmd.OutOrStdout(), core.Search.Suggest(cmd.Context(), args[0], limit, category))
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum suggestions (default 10)")
	cmd.Flags().StringVar(&category, "category", "", "Restrict suggestions to a category id")
	return cmd
}

func newStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the engine name and indexed document count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withCore(cmd.Context(), func(core *app.Core) error {
				stats, err := core.Search.Stats(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stats)
			})
		},
	}
}

func newSeedCmd(c *cli) *cobra.Command {
	var (
		count int
		rng   uint64
		batch int
		index bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write a generated demo catalog to the primary store",
		Long: `seed generates a deterministic catalog of demo categories and products
and upserts it into the Postgres catalog. Running it twice with the same
--seed rewrites the same rows. Pass --index to rebuild the search index
afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.CatalogBackend != config.CatalogPostgres {
				return errors.New("seed writes to the postgres catalog; set CATALOG_BACKEND=postgres or use SEED_PRODUCTS for the in-memory one")
			}
			if count < 1 {
				return fmt.Errorf("--count must be positive: %d", count)
			}
			return c.withCore(cmd.Context(), func(core *app.Core) error {
				w, ok := core.Store.(seed.Writer)
				if !ok {
					return fmt.Errorf("catalog store %T is read-only", core.Store)
				}
				sum, err := seed.Load(cmd.Context(), w, seed.Options{Products: count, Seed: rng, BatchSize: batch}, c.logger)
				if err != nil {
					return err
				}
				out := struct {
					seed.Summary
					Report *domain.SyncReport `json:"index,omitempty"`
				}{Summary: sum}
				if index {
					report, err := core.Search.SyncAll(cmd.Context())
					if err != nil {
						return err
					}
					out.Report = report
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", 1000, "Number of products to generate")
	cmd.Flags().Uint64Var(&rng, "seed", 1, "Random seed")
	cmd.Flags().IntVar(&batch, "batch", 500, "Products per transaction")
	cmd.Flags().BoolVar(&index, "index", false, "Run sync-all after seeding")
	return cmd
}

func newTokenCmd(c *cli) *cobra.Command {
	var (
		user string
		role string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token for the admin endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.AdminJWTSecret == "" {
				return errors.New("ADMIN_JWT_SECRET is not set")
			}
			tok, err := middleware.SignToken(c.cfg.AdminJWTSecret, user, role, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&user, "user", "searchctl", "Subject of the token")
	cmd.Flags().StringVar(&role, "role", middleware.RoleAdmin, "Role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}

var emitTopics = map[string]string{
	"created": event.TopicProductCreated,
	"updated": event.TopicProductUpdated,
	"deleted": event.TopicProductDeleted,
}

func newEmitCmd(c *cli) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "emit <product-id>",
		Short: "Publish a product change event to Kafka",
		Long: `emit publishes the same envelope the catalog service sends when a product
changes. The running search service picks it up and reindexes the product.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic, ok := emitTopics[kind]
			if !ok {
				return fmt.Errorf("--type must be created, updated or deleted; got %q", kind)
			}
			ev, err := pkgkafka.NewEvent(topic, args[0], "product", "searchctl", event.ProductEventData{ID: args[0]})
			if err != nil {
				return err
			}

			producer := pkgkafka.NewProducer(pkgkafka.ProducerConfig{Brokers: c.cfg.KafkaBrokers}, c.logger, nil)
			defer producer.Close()
			if err := producer.Publish(cmd.Context(), topic, ev); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"event_id": ev.EventID, "topic": topic})
		},
	}
	cmd.Flags().StringVar(&kind, "type", "updated", "Event type: created, updated or deleted")
	return cmd
}
