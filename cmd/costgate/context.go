package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/revittco/costgate/internal/config"
	"github.com/revittco/costgate/internal/store"
	"github.com/revittco/costgate/internal/store/redis"
	"github.com/revittco/costgate/internal/store/sqlite"
	"github.com/spf13/pflag"
)

// cmdContext inspects or edits the customer context bound to an API key.
func cmdContext(args []string) error {
	fs := pflag.NewFlagSet("context", pflag.ContinueOnError)
	flags := config.NewFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 2 {
		return fmt.Errorf("usage: costgate context <get|set|clear> <api-key> [customer-context]")
	}

	cfg, err := config.Load(flags.Sources())
	if err != nil {
		return err
	}
	flags.Apply(cfg)

	ctx := context.Background()
	sessions, closeFn, err := openSessions(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	sub, key := rest[0], rest[1]
	switch sub {
	case "get":
		cc, err := sessions.LoadCustomerContext(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			fmt.Println("(none)")
			return nil
		}
		if err != nil {
			return fmt.Errorf("load customer context: %w", err)
		}
		fmt.Println(cc)

	case "set":
		if len(rest) < 3 {
			return fmt.Errorf("usage: costgate context set <api-key> <customer-context>")
		}
		if err := sessions.SaveCustomerContext(ctx, key, rest[2]); err != nil {
			return fmt.Errorf("save customer context: %w", err)
		}
		fmt.Printf("Customer context set to %q\n", rest[2])

	case "clear":
		if err := sessions.DeleteCustomerContext(ctx, key); err != nil {
			return fmt.Errorf("delete customer context: %w", err)
		}
		fmt.Println("Customer context cleared")

	default:
		return fmt.Errorf("unknown context command: %s\nUsage: costgate context <get|set|clear>", sub)
	}
	return nil
}

// openSessions returns the session backend serve would use.
func openSessions(ctx context.Context, cfg *config.Config) (store.SessionStore, func(), error) {
	if cfg.RedisURL != "" {
		rs, err := redis.Open(ctx, cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			return nil, nil, err
		}
		return rs, func() { _ = rs.Close() }, nil
	}
	db, err := sqlite.New(ctx, cfg.DBDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return db, func() { _ = db.Close() }, nil
}
