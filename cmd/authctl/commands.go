package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/AntonTsoy/authgate/internal/db"
	"github.com/AntonTsoy/authgate/internal/user"
	"github.com/AntonTsoy/authgate/pkg/config"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:          "authctl",
		Short:        "Operator tooling for the authgate service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before the environment")

	root.AddCommand(
		newMigrateCmd(&envFile),
		newCreateUserCmd(&envFile),
	)
	return root
}

func newMigrateCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Args:  cobra.NoArgs,
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), *envFile, func(pg *sql.DB) error {
				if err := db.Migrate(cmd.Context(), pg); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}

func newCreateUserCmd(envFile *string) *cobra.Command {
	var username, password, role string

	cmd := &cobra.Command{
		Use:     "createuser",
		Aliases: []string{"adduser"},
		Args:    cobra.NoArgs,
		Short:   "Create a user with a bcrypt-hashed password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), *envFile, func(pg *sql.DB) error {
				u, err := createUser(cmd.Context(), user.NewPostgresRepository(pg), username, password, role)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) id=%s\n", u.Username, u.Role, u.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&password, "password", "", "plain text password")
	cmd.Flags().StringVar(&role, "role", string(user.RoleStandard), "admin or standard")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func createUser(ctx context.Context, repo user.Repository, username, password, role string) (*user.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password must not be empty")
	}
	r, err := user.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("role %q: %w", role, err)
	}
	hash, err := user.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &user.User{Username: username, PasswordHash: hash, Role: r, IsActive: true}
	if err := repo.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func withDB(ctx context.Context, envFile string, fn func(*sql.DB) error) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	pg, err := db.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pg.Close()
	return fn(pg)
}
