// Command kitty-backup exports the ledger as a backup document, either to a
// local file or pushed to the configured remote endpoint.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"kitty/internal/config"
	applog "kitty/internal/log"
	"kitty/internal/observability"
	"kitty/internal/store"
	kittysync "kitty/internal/sync"
)

func main() {
	_ = godotenv.Load()

	var (
		outPath = flag.String("out", "", "write the backup document to this file ('-' for stdout)")
		push    = flag.Bool("push", false, "push the backup to the remote endpoint")
		timeout = flag.Duration("timeout", 30*time.Second, "timeout for the remote push")
	)
	flag.Parse()

	cfg := config.Load()

	logger := applog.New(applog.Config{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		Component: "kitty-backup",
	})
	applog.SetDefault(logger)

	if !*push && *outPath == "" {
		fmt.Fprintln(os.Stderr, "nothing to do: pass -out FILE and/or -push")
		flag.Usage()
		os.Exit(2)
	}

	mirror, err := store.NewSQLiteMirror(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open SQLite mirror", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer mirror.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	st, err := store.Open(ctx, mirror)
	if err != nil {
		logger.Error("Failed to load ledger from mirror", "error", err)
		os.Exit(1)
	}

	doc := st.ExportDocument()
	logger.Info("Ledger exported", "transactions", len(doc.Transactions))

	if *outPath != "" {
		if err := writeDocument(*outPath, doc); err != nil {
			logger.Error("Failed to write backup file", "error", err, "path", *outPath)
			os.Exit(1)
		}
		logger.Info("Backup written", "path", *outPath)
	}

	if *push {
		client := kittysync.NewClient(cfg.RemoteEndpoint)
		if !client.Enabled() {
			logger.Error("Cannot push backup, REMOTE_ENDPOINT is not set")
			os.Exit(1)
		}
		rec := kittysync.NewReconciler(st, client, observability.NewMetrics(), kittysync.DefaultConfig(), nil)
		if err := rec.PushBackup(ctx); err != nil {
			logger.Error("Backup push failed", "error", err)
			os.Exit(1)
		}
		logger.Info("Backup pushed", "endpoint", cfg.RemoteEndpoint)
	}
}

func writeDocument(path string, doc store.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if path == "-" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
