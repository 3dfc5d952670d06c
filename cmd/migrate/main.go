package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/straye-as/travel-crm-api/internal/config"
	"github.com/straye-as/travel-crm-api/internal/domain"
)

const usage = `usage: migrate [-dir ./migrations] <command> [args]

commands:
  up | up-by-one | up-to VERSION | down | down-to VERSION | redo | reset | status | version
  create NAME              create a new SQL migration
  seed SLUG NAME EMAIL     create an agency and its first MASTER user`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Migration error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	dir := flag.String("dir", "./migrations", "directory with SQL migrations")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return fmt.Errorf("missing command")
	}
	command, arguments := args[0], args[1:]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	switch command {
	case "seed":
		if len(arguments) != 3 {
			return fmt.Errorf("seed requires SLUG NAME EMAIL")
		}
		return seedAgency(ctx, db, arguments[0], arguments[1], arguments[2])
	case "create":
		if len(arguments) == 0 {
			return fmt.Errorf("create requires a migration name")
		}
		if err := goose.Create(db, *dir, arguments[0], "sql"); err != nil {
			return fmt.Errorf("failed to create migration: %w", err)
		}
		fmt.Printf("Migration created: %s\n", arguments[0])
		return nil
	default:
		if err := goose.RunContext(ctx, command, db, *dir, arguments...); err != nil {
			return fmt.Errorf("goose %s: %w", command, err)
		}
		return nil
	}
}

// seedAgency creates an agency and a MASTER user in one transaction
func seedAgency(ctx context.Context, db *sql.DB, slug, name, email string) error {
	slug = strings.ToLower(strings.TrimSpace(slug))
	email = strings.ToLower(strings.TrimSpace(email))
	if slug == "" || email == "" {
		return fmt.Errorf("slug and email must not be empty")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	agencyID, userID := uuid.New(), uuid.New()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO agencies (id, name, slug, lifecycle) VALUES ($1, $2, $3, $4)`,
		agencyID, strings.TrimSpace(name), slug, domain.LifecycleActive,
	); err != nil {
		return fmt.Errorf("failed to create agency: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, agency_id, display_name, email, role, lifecycle) VALUES ($1, $2, $3, $4, $5, $6)`,
		userID, agencyID, email, email, domain.RoleMaster, domain.LifecycleActive,
	); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}

	fmt.Printf("Agency %s created (%s), master user %s (%s)\n", slug, agencyID, email, userID)
	return nil
}
