package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhoicas/emissor-nfse/internal/infrastructure/postgres"
	"github.com/jhoicas/emissor-nfse/pkg/config"
	"github.com/jhoicas/emissor-nfse/pkg/logger"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrações do PostgreSQL (goose)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Aplica as migrações pendentes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("carregar configuração: %w", err)
			}
			pool, err := postgres.NewPool(cmd.Context(), cfg.DB)
			if err != nil {
				return err
			}
			defer pool.Close()
			return postgres.Migrate(cmd.Context(), pool, logger.NewWithWriter(logger.Config{Env: "development"}, cmd.ErrOrStderr()))
		},
	})
	return cmd
}
