package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/a11y-scanner/config"
	"github.com/target/a11y-scanner/internal/bootstrap"
	"github.com/target/a11y-scanner/internal/data"
)

const inspectTimeout = 30 * time.Second

func runShowScan(cmdCtx *commandContext, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: a11yscan-admin scan <id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid scan id %q", args[0])
	}
	if cmdCtx.Config.Storage.ScanStore != config.ScanStorePostgres {
		return fmt.Errorf("scan store %q cannot be inspected from another process", cmdCtx.Config.Storage.ScanStore)
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, inspectTimeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(ctx, dbConfig(cmdCtx))
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	job, err := data.NewScanRepo(db, data.ScanRepoOptions{}).GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get scan %d: %w", id, err)
	}
	return writeIndentedJSON(cmdCtx.Stdout, job)
}

func runShowReport(cmdCtx *commandContext, args []string) error {
	if len(args) != 1 || args[0] == "" {
		return errors.New("usage: a11yscan-admin report <reference>")
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, inspectTimeout)
	defer cancel()

	var client redis.UniversalClient
	if cmdCtx.Config.Storage.ReportStore == config.ReportStoreRedis {
		var err error
		client, err = bootstrap.ConnectRedis(ctx, dbConfig(cmdCtx))
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
			}
		}()
	}

	store, err := bootstrap.BuildReportStore(cmdCtx.Config.Storage, client)
	if err != nil {
		return err
	}
	report, err := store.Load(ctx, args[0])
	if err != nil {
		return fmt.Errorf("load report %q: %w", args[0], err)
	}
	return writeIndentedJSON(cmdCtx.Stdout, report)
}

func dbConfig(cmdCtx *commandContext) bootstrap.DatabaseConfig {
	return bootstrap.DatabaseConfig{
		DBConfig:    cmdCtx.Config.Postgres,
		RedisConfig: cmdCtx.Config.Redis,
		Logger:      cmdCtx.Logger,
	}
}

func writeIndentedJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
