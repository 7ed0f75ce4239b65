// Command memcache-cli is a small interactive and scriptable client for a
// memcached meta-protocol server.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cacheflow/memcache"
	"github.com/cacheflow/memcache/hclogsink"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

var (
	address string
	verbose bool
)

func main() {
	root := &cobra.Command{
		Use:   "memcache-cli",
		Short: "Interact with a memcached meta-protocol server",
	}
	root.PersistentFlags().StringVar(&address, "address", "127.0.0.1:11211", "memcached server address")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log connection and pool events")

	root.AddCommand(getCmd(), setCmd(), deleteCmd(), incrCmd(), decrCmd(), statsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newClient(ctx context.Context) (*memcache.Client, func(), error) {
	level := hclog.Warn
	if verbose {
		level = hclog.Debug
	}
	log := hclog.New(&hclog.LoggerOptions{Name: "memcache-cli", Level: level})
	sink := hclogsink.New(log)

	pool := memcache.NewPool(memcache.DialConfig{Address: address}, memcache.PoolConfig{}, sink)
	client := memcache.NewClient(pool, sink, nil)

	runCtx, cancel := context.WithCancel(ctx)
	go func() { _ = client.Run(runCtx) }()

	return client, cancel, nil
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Fetch a value by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, cancel, err := newClient(ctx)
			if err != nil {
				return err
			}
			defer cancel()

			start := time.Now()
			item, err := client.Get(ctx, args[0])
			elapsed := time.Since(start)
			if err != nil {
				return fmt.Errorf("get %q: %w", args[0], err)
			}
			if !item.Found {
				fmt.Printf("key not found (%s)\n", elapsed)
				return nil
			}
			fmt.Printf("%s (%s)\n", item.Value, elapsed)
			return nil
		},
	}
}

func setCmd() *cobra.Command {
	var ttlSeconds int
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a value unconditionally",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, cancel, err := newClient(ctx)
			if err != nil {
				return err
			}
			defer cancel()

			ttl := memcache.Indefinite()
			if ttlSeconds > 0 {
				ttl = memcache.ExpiresAt(time.Now().Add(time.Duration(ttlSeconds) * time.Second))
			}

			start := time.Now()
			err = client.Set(ctx, args[0], []byte(args[1]), ttl)
			elapsed := time.Since(start)
			if err != nil {
				return fmt.Errorf("set %q: %w", args[0], err)
			}
			fmt.Printf("stored (%s)\n", elapsed)
			return nil
		},
	}
	cmd.Flags().IntVar(&ttlSeconds, "ttl", 0, "seconds until expiry (0 = indefinite)")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <key>",
		Aliases: []string{"del"},
		Short:   "Remove a key",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, cancel, err := newClient(ctx)
			if err != nil {
				return err
			}
			defer cancel()

			if err := client.Delete(ctx, args[0]); err != nil {
				var notFound *memcache.KeyNotFoundError
				if isKeyNotFound(err, &notFound) {
					fmt.Println("key not found")
					return nil
				}
				return fmt.Errorf("delete %q: %w", args[0], err)
			}
			fmt.Println("deleted")
			return nil
		},
	}
}

func incrCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "incr <key> <delta>",
		Short: "Increment a numeric value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, cancel, err := newClient(ctx)
			if err != nil {
				return err
			}
			defer cancel()

			var delta uint64
			if _, err := fmt.Sscanf(args[1], "%d", &delta); err != nil {
				return fmt.Errorf("invalid delta %q: %w", args[1], err)
			}
			value, err := client.Increment(ctx, args[0], delta)
			if err != nil {
				return fmt.Errorf("incr %q: %w", args[0], err)
			}
			fmt.Println(value)
			return nil
		},
	}
}

func decrCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decr <key> <delta>",
		Short: "Decrement a numeric value, floored at zero",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, cancel, err := newClient(ctx)
			if err != nil {
				return err
			}
			defer cancel()

			var delta uint64
			if _, err := fmt.Sscanf(args[1], "%d", &delta); err != nil {
				return fmt.Errorf("invalid delta %q: %w", args[1], err)
			}
			value, err := client.Decrement(ctx, args[0], delta)
			if err != nil {
				return fmt.Errorf("decr %q: %w", args[0], err)
			}
			fmt.Println(value)
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print pool and client counters after a single round-trip",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, cancel, err := newClient(ctx)
			if err != nil {
				return err
			}
			defer cancel()

			_, _ = client.Get(ctx, "__memcache_cli_stats_probe__")

			ps := client.PoolStats()
			cs := client.Stats()
			fmt.Printf("pool:   total=%d idle=%d active=%d created=%d destroyed=%d errors=%d avg_wait=%s\n",
				ps.TotalConns, ps.IdleConns, ps.ActiveConns, ps.CreatedConns, ps.DestroyedConns, ps.AcquireErrors, ps.AverageWaitTime())
			fmt.Printf("client: gets=%d sets=%d adds=%d deletes=%d increments=%d hit_rate=%.2f errors=%d\n",
				cs.Gets, cs.Sets, cs.Adds, cs.Deletes, cs.Increments, cs.HitRate(), cs.Errors)
			return nil
		},
	}
}

func isKeyNotFound(err error, target **memcache.KeyNotFoundError) bool {
	for err != nil {
		if knf, ok := err.(*memcache.KeyNotFoundError); ok {
			*target = knf
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
