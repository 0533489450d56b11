package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/astralhq/astral-assist/internal/config"
	"github.com/astralhq/astral-assist/internal/log"
	"github.com/astralhq/astral-assist/internal/vector"
)

var (
	resetNamespace string
	resetYes       bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every document in a namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReset(cmd.Context())
	},
}

func init() {
	resetCmd.Flags().StringVar(&resetNamespace, "namespace", "", "namespace to wipe (defaults to the configured one)")
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "skip the confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}

func runReset(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := log.New(log.Config{Level: cfg.SlogLevel(), JSON: cfg.LogJSON})

	namespace := resetNamespace
	if namespace == "" {
		namespace = cfg.Namespace
	}

	if !resetYes {
		fmt.Printf("This deletes every document in namespace %q. Continue? [y/N]: ", namespace)
		var answer string
		if _, err := fmt.Scanln(&answer); err != nil || (answer != "y" && answer != "Y") {
			fmt.Println("Aborted.")
			return nil
		}
	}

	pool, err := vector.NewPool(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to PostgreSQL: %w", err)
	}
	defer pool.Close()

	index := vector.NewStore(pool, cfg.VectorDimension, logger)
	if err := index.DeleteNamespace(ctx, namespace); err != nil {
		return fmt.Errorf("deleting namespace: %w", err)
	}

	fmt.Printf("Namespace %q wiped\n", namespace)
	return nil
}
