/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/programhub/apiserver/config"
	"github.com/programhub/apiserver/internal/db"
	"github.com/programhub/apiserver/internal/services"
	"github.com/programhub/apiserver/internal/store"
	"github.com/programhub/apiserver/types"
	"github.com/spf13/cobra"
)

// adminCmd groups account bootstrap commands.
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage administration accounts",
}

var adminCreateFlags struct {
	name     string
	email    string
	password string
	role     string
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account without going through the API",
	Long: `Creates an account directly in the database. Use it to bootstrap the
first admin, since the API only lets admins create accounts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer conn.Close()

		users := services.NewUserService(store.NewUserRepository(conn), nil)
		user, err := users.Create(ctx, uuid.Nil, services.CreateUserInput{
			Name:     adminCreateFlags.name,
			Email:    adminCreateFlags.email,
			Password: adminCreateFlags.password,
			Role:     adminCreateFlags.role,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", user.Role, user.Email, user.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminCreateCmd)

	flags := adminCreateCmd.Flags()
	flags.StringVar(&adminCreateFlags.name, "name", "", "display name")
	flags.StringVar(&adminCreateFlags.email, "email", "", "login email")
	flags.StringVar(&adminCreateFlags.password, "password", "", "login password")
	flags.StringVar(&adminCreateFlags.role, "role", types.RoleAdmin, "account role (admin or moderator)")
	_ = adminCreateCmd.MarkFlagRequired("email")
	_ = adminCreateCmd.MarkFlagRequired("password")
	_ = adminCreateCmd.MarkFlagRequired("name")
}
