// Command bobbinctl runs operator tasks against a Bobbin deployment: schema
// migration and development tokens.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"bobbin-backend/infrastructure/config"
	"bobbin-backend/infrastructure/di"
	"bobbin-backend/pkg/auth"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bobbinctl",
		Short:         "Operator tool for the Bobbin backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(migrateCmd(), tokenCmd(), versionCmd())
	return cmd
}

func migrateCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the schema of the configured store",
		Long: `Migrate prepares the store selected by STORE_BACKEND.

For postgres the tables and indexes are migrated in place. For dynamodb the
table is created when missing and the command waits until it is active.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg.AutoMigrate = true

			logger, err := di.ProvideLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			awsCfg, err := di.ProvideAWSConfig(ctx, cfg)
			if err != nil {
				return fmt.Errorf("load aws config: %w", err)
			}
			_, cleanup, err := di.ProvideGraphStore(ctx, cfg, di.ProvideDynamoDBClient(awsCfg), logger)
			if err != nil {
				return fmt.Errorf("migrate %s store: %w", cfg.StoreBackend, err)
			}
			cleanup()

			logger.Info("Store is up to date", zap.String("store", cfg.StoreBackend))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Give up after this long")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		email  string
		role   string
		expiry time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue an HS256 token signed with JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}

			signer, err := auth.NewSessionSigner(auth.SessionKeys{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, expiry)
			if err != nil {
				return err
			}
			token, err := signer.Sign(auth.Identity{UserID: args[0], Email: email, Role: role})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().StringVar(&role, "role", "user", "Role claim")
	cmd.Flags().DurationVar(&expiry, "expiry", 24*time.Hour, "Token lifetime")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bobbinctl version %s\n", di.Version)
		},
	}
}
