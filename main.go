package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"captain/admin"
	"captain/cache"
	"captain/common"
	"captain/config"
	"captain/database"
	"captain/models"
	"captain/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "captain",
		Short:        "A small self-hosted blog",
		SilenceUsage: true,
	}
	cmd.AddCommand(newServeCmd(), newMigrateCmd(), newUserCmd())
	return cmd
}

// openDb connects to the configured database and migrates it.
func openDb(cfg config.Config) (*gorm.DB, error) {
	db, err := common.ConnectDb(cfg.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := database.RunMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if err := cfg.Validate(); err != nil {
				return err
			}

			db, err := openDb(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go server.SweepCache(ctx, cache.New(cfg.CacheDir, cfg.CacheTTL), time.Hour)

			return server.Run(ctx, ":"+cfg.Port, server.New(db, cfg))
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := openDb(config.Load())
			return err
		},
	}
}

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage admin users",
	}

	var firstName, lastName, email, password string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an admin user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(password) < 8 {
				return fmt.Errorf("password must be at least 8 characters")
			}

			db, err := openDb(config.Load())
			if err != nil {
				return err
			}

			hash, err := admin.HashPassword(password)
			if err != nil {
				return err
			}
			user := models.User{
				FirstName:    firstName,
				LastName:     lastName,
				Email:        strings.TrimSpace(strings.ToLower(email)),
				PasswordHash: hash,
			}
			if err := db.Create(&user).Error; err != nil {
				return fmt.Errorf("create user: %w", err)
			}

			log.Printf("created user %d <%s>", user.ID, user.Email)
			return nil
		},
	}
	create.Flags().StringVar(&firstName, "first-name", "", "first name")
	create.Flags().StringVar(&lastName, "last-name", "", "last name")
	create.Flags().StringVar(&email, "email", "", "login email")
	create.Flags().StringVar(&password, "password", "", "login password (min. 8 characters)")
	for _, name := range []string{"first-name", "last-name", "email", "password"} {
		create.MarkFlagRequired(name)
	}

	cmd.AddCommand(create)
	return cmd
}
