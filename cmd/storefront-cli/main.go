package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/barelle/storefront/internal/config"
	"github.com/barelle/storefront/internal/db"
	"github.com/barelle/storefront/internal/user"
)

const usage = "expected 'migrate' or 'create-admin' subcommand"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	createAdminCmd := flag.NewFlagSet("create-admin", flag.ExitOnError)
	email := createAdminCmd.String("email", "", "Email of the admin account")
	password := createAdminCmd.String("password", "", "Password for a new account")
	firstName := createAdminCmd.String("first-name", "Admin", "First name for a new account")

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	switch os.Args[1] {
	case "migrate":
		runMigrate(cfg)
	case "create-admin":
		_ = createAdminCmd.Parse(os.Args[2:])
		if *email == "" {
			fmt.Println("email is required")
			createAdminCmd.PrintDefaults()
			os.Exit(1)
		}
		createAdmin(cfg, *email, *password, *firstName)
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

func runMigrate(cfg *config.Config) {
	sqlDB, err := db.ConnectSQLX(cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer sqlDB.Close()

	if err := db.Migrate(sqlDB, cfg.Postgres.DBName); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}
}

// createAdmin promotes the account with email to admin, registering it
// first when it does not exist yet.
func createAdmin(cfg *config.Config, email, password, firstName string) {
	ctx := context.Background()
	dbConn, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	users := user.NewService(user.NewRepository(dbConn.Pool))

	account, err := users.GetByEmail(ctx, email)
	if errors.Is(err, user.ErrNotFound) {
		if password == "" {
			log.Fatal().Str("email", email).Msg("No such account; -password is required to create it")
		}
		account, err = users.Register(ctx, user.RegisterInput{
			Email:     email,
			Password:  password,
			FirstName: firstName,
		})
	}
	if err != nil {
		log.Fatal().Err(err).Str("email", email).Msg("Failed to prepare admin account")
	}

	promoted, err := users.PromoteToAdmin(ctx, account.ID)
	if err != nil {
		log.Fatal().Err(err).Str("email", email).Msg("Failed to promote account")
	}

	fmt.Printf("User '%s' is now an admin (id %s).\n", promoted.Email, promoted.ID)
}
