// pos-migrate управляет схемой PostgreSQL хранилища точки продаж.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/akriventsev/sportstore/framework/migrations"
	"github.com/akriventsev/sportstore/internal/infrastructure/postgres"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	flags := flag.NewFlagSet(command, flag.ExitOnError)
	dbURL := flags.String("database-url", os.Getenv("POS_DATABASE_URL"), "PostgreSQL connection string (default $POS_DATABASE_URL)")
	timeout := flags.Duration("timeout", 5*time.Minute, "Overall timeout")
	_ = flags.Parse(os.Args[2:])

	switch command {
	case "up", "down", "status", "version":
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if *dbURL == "" {
		fmt.Fprintf(os.Stderr, "Error: --database-url is required\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, command, *dbURL, flags.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("POS Migration Tool")
	fmt.Println()
	fmt.Println("Usage: pos-migrate <command> [flags] [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up [N]     - Apply all pending migrations (or N migrations)")
	fmt.Println("  down [N]   - Rollback N migrations (default: 1)")
	fmt.Println("  status     - Show status of all migrations")
	fmt.Println("  version    - Show current migration version")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --database-url  - PostgreSQL connection string (default: $POS_DATABASE_URL)")
	fmt.Println("  --timeout       - Overall timeout (default: 5m)")
}

// steps разбирает необязательный числовой аргумент
func steps(args []string, fallback int) (int, error) {
	if len(args) == 0 {
		return fallback, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid number of steps %q", args[0])
	}
	return n, nil
}

func run(ctx context.Context, command, dbURL string, args []string) error {
	pool, err := postgres.Connect(ctx, dbURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	runner, closeDB, err := postgres.NewMigrationRunner(pool)
	if err != nil {
		return err
	}
	defer closeDB()

	switch command {
	case "up":
		n, err := steps(args, 0)
		if err != nil {
			return err
		}
		applied, err := runner.UpSteps(ctx, n)
		if err != nil {
			return err
		}
		fmt.Printf("Applied %d migration(s)\n", applied)

	case "down":
		n, err := steps(args, 1)
		if err != nil {
			return err
		}
		rolledBack, err := runner.Down(ctx, n)
		if err != nil {
			return err
		}
		fmt.Printf("Rolled back %d migration(s)\n", rolledBack)

	case "status":
		statuses, err := runner.Status(ctx)
		if err != nil {
			return err
		}
		printStatus(statuses)

	case "version":
		version, err := runner.Version(ctx)
		if err != nil {
			return err
		}
		if version == 0 {
			fmt.Println("No migrations applied")
		} else {
			fmt.Println(version)
		}
	}
	return nil
}

func printStatus(statuses []migrations.MigrationStatus) {
	fmt.Println("Migration Status:")
	fmt.Println("================")
	for _, status := range statuses {
		fmt.Printf("[%-7s] %05d - %s", status.Status, status.Version, status.Name)
		if status.AppliedAt != nil {
			fmt.Printf(" (applied at %s)", status.AppliedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}
}
