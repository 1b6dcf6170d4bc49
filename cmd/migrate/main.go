// migrate applies the embedded schema migrations to the configured MySQL
// database: go run ./cmd/migrate -direction up
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/iliyamo/promptvault/internal/config"
	"github.com/iliyamo/promptvault/internal/database"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.StoreDriver != config.StoreMySQL {
		fmt.Fprintf(os.Stderr, "nothing to migrate for STORE_DRIVER=%s\n", cfg.StoreDriver)
		return
	}

	dsn := database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err := database.Migrate(dsn, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
