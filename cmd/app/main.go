// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"

	"codeberg.org/oliverandrich/assistant-hub/internal/config"
	"codeberg.org/oliverandrich/assistant-hub/internal/server"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	// Variables from .env never override the real environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("failed to load .env: %v", err)
	}

	cmd := &cli.Command{
		Name:   "assistant-hub",
		Usage:  "Identity and access service of the assistant platform",
		Flags:  config.Flags(),
		Action: server.Run,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP API (default)",
				Action: server.Run,
			},
			{
				Name:  "create-admin",
				Usage: "Create an admin account or promote an existing one",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "email",
						Usage:    "Email address of the admin",
						Required: true,
						Sources:  cli.EnvVars("ADMIN_EMAIL"),
					},
					&cli.StringFlag{
						Name:  "password",
						Usage: "Password of the admin (or ADMIN_PASSWORD)",
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Display name (defaults to the email address)",
					},
				},
				Action: server.CreateAdmin,
			},
			{
				Name:   "migrate-down",
				Usage:  "Roll back the most recent database migration",
				Action: server.RollbackMigration,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
