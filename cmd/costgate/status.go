package main

import (
	"context"
	"fmt"
	"time"

	"github.com/revittco/costgate/internal/config"
	"github.com/revittco/costgate/internal/store"
	"github.com/revittco/costgate/internal/store/sqlite"
	"github.com/spf13/pflag"
)

func cmdStatus(args []string) error {
	fs := pflag.NewFlagSet("status", pflag.ContinueOnError)
	flags := config.NewFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(flags.Sources())
	if err != nil {
		return err
	}
	flags.Apply(cfg)

	ctx := context.Background()
	db, err := sqlite.New(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	_, total, err := db.QueryAuditRecords(ctx, store.AuditFilter{Limit: 1})
	if err != nil {
		return fmt.Errorf("query audit records: %w", err)
	}
	since := time.Now().Add(-24 * time.Hour)
	errStatus := "error"
	_, failed, err := db.QueryAuditRecords(ctx, store.AuditFilter{Status: &errStatus, After: &since, Limit: 1})
	if err != nil {
		return fmt.Errorf("query audit records: %w", err)
	}

	fmt.Printf("costgate %s (db: %s)\n", version, cfg.DBDSN)
	fmt.Printf("  Mode:               %s\n", cfg.Mode)
	fmt.Printf("  Upstream:           %s\n", cfg.UpstreamURL)
	fmt.Printf("  Tool calls:         %d\n", total)
	fmt.Printf("  Failed (24h):       %d\n", failed)
	return nil
}
