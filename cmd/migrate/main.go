// migrate applies or rolls back the embedded SQL migrations, or prints the applied version.
// Usage: go run ./cmd/migrate -direction up|down|version
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/jfkeci/job-board-sub000/internal/config"
	"github.com/jfkeci/job-board-sub000/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down, or version to print the applied version")
	flag.Parse()

	cfg, err := config.LoadTooling()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
		os.Exit(1)
	}

	if *direction == "version" {
		version, dirty, err := migrate.Version(cfg.DatabaseURL)
		if err != nil {
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
		fmt.Printf("version %d (dirty: %t)\n", version, dirty)
		return
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			// Already at target version; success.
			return
		}
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
