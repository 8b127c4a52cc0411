// Package cli comandos do nfsectl: inspeção de certificados A1, cadeia de assinatura do RPS
// e migrações do banco.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jhoicas/emissor-nfse/pkg/logger"
)

// NewRootCmd monta a árvore de comandos.
func NewRootCmd() *cobra.Command {
	var level string
	root := &cobra.Command{
		Use:               "nfsectl",
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		Short:             "Ferramentas de operação do emissor de NFS-e",
		SilenceUsage:      true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.NewWithWriter(logger.Config{Env: "development", Level: level}, cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&level, "log-level", "info", "trace, debug, info, warn ou error")

	root.AddCommand(newCertCmd(), newPayloadCmd(), newMigrateCmd())
	return root
}

// Execute roda o nfsectl com os argumentos do processo.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
