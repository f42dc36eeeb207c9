// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/protovault/protovault/internal/auth"
	"github.com/protovault/protovault/internal/config"
	"github.com/protovault/protovault/internal/database"
	"github.com/protovault/protovault/internal/logger"
	"github.com/protovault/protovault/internal/models"
)

func RunUserCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage local user accounts",
	}

	cmd.AddCommand(runUserCreateCommand(configPath))
	cmd.AddCommand(runUserChangePasswordCommand(configPath))
	return cmd
}

func runUserCreateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "create <username>",
		Short: "Create the initial user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, db, err := userService(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			complete, err := service.IsSetupComplete(cmd.Context())
			if err != nil {
				return err
			}
			if complete {
				return errors.New("a user already exists; use 'user change-password' instead")
			}

			password, err := promptPassword(cmd)
			if err != nil {
				return err
			}

			if _, err := service.CreateUser(cmd.Context(), args[0], password); err != nil {
				return err
			}

			cmd.Printf("User %q created\n", args[0])
			return nil
		},
	}
}

func runUserChangePasswordCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "change-password <username>",
		Short: "Set a new password for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, db, err := userService(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			password, err := promptPassword(cmd)
			if err != nil {
				return err
			}

			if err := service.SetPassword(cmd.Context(), args[0], password); err != nil {
				return err
			}

			cmd.Printf("Password updated for %q\n", args[0])
			return nil
		},
	}
}

func userService(configPath string) (*auth.Service, *database.DB, error) {
	cfg, err := config.New(configPath, version)
	if err != nil {
		return nil, nil, err
	}

	logger.Setup(cfg.Config)

	db, err := database.New(cfg.DatabasePath())
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	return auth.NewService(models.NewUserStore(db)), db, nil
}

func promptPassword(cmd *cobra.Command) (string, error) {
	cmd.Print("New password: ")
	password, err := term.ReadPassword(0)
	cmd.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	cmd.Print("Confirm password: ")
	confirm, err := term.ReadPassword(0)
	cmd.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	if string(password) != string(confirm) {
		return "", errors.New("passwords do not match")
	}
	return string(password), nil
}
