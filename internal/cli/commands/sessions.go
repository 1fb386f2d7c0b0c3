package commands

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/launchkit-dev/launchkit/internal/config"
	"github.com/launchkit-dev/launchkit/internal/database"
	"github.com/launchkit-dev/launchkit/internal/models"
	"github.com/launchkit-dev/launchkit/internal/session"
)

// NewSessionsCmd creates the sessions command group
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage stored sessions",
	}

	cmd.AddCommand(newPurgeCmd())
	cmd.AddCommand(newRevokeCmd())

	return cmd
}

func newPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired sessions now",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeDB, err := openStore()
			if err != nil {
				return err
			}
			defer closeDB()

			removed, err := store.PurgeExpired(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired session(s)\n", removed)
			return nil
		},
	}
}

func newRevokeCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Sign a user out everywhere",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeDB, err := openStore()
			if err != nil {
				return err
			}
			defer closeDB()

			removed, err := store.DeleteForUser(cmd.Context(), userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Revoked %d session(s) for user %s\n", removed, userID)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func openStore() (*session.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.Open(cfg.Database.URL, zerolog.Nop())
	if err != nil {
		return nil, nil, err
	}
	if err := models.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, nil, err
	}

	return session.NewStore(db), func() { _ = database.Close(db) }, nil
}
