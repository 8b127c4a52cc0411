package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jhoicas/emissor-nfse/internal/infrastructure/nfse/certstore"
)

type certFlags struct {
	file     string
	password string
	cnpj     string
}

func newCertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Certificados A1 (PKCS#12)",
	}
	cmd.AddCommand(newCertInspectCmd(), newCertConvertCmd())
	return cmd
}

func (f *certFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "bundle .pfx/.p12")
	cmd.Flags().StringVarP(&f.password, "password", "p", "", "senha do bundle")
	cmd.Flags().StringVar(&f.cnpj, "cnpj", "", "CNPJ do emissor (apenas para mensagens de erro)")
	_ = cmd.MarkFlagRequired("file")
}

func (f *certFlags) decode() (*certstore.Material, error) {
	bundle, err := os.ReadFile(f.file)
	if err != nil {
		return nil, fmt.Errorf("ler bundle: %w", err)
	}
	return certstore.Decode(f.cnpj, bundle, f.password)
}

func newCertInspectCmd() *cobra.Command {
	var f certFlags
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Mostra titular, emissor e validade do certificado",
		Example: `  nfsectl cert inspect -f empresa.pfx -p segredo`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := f.decode()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "titular:     %s\n", m.Certificate.Subject.CommonName)
			fmt.Fprintf(out, "emissor:     %s\n", m.Certificate.Issuer.CommonName)
			fmt.Fprintf(out, "serial:      %s\n", m.Certificate.SerialNumber.Text(16))
			fmt.Fprintf(out, "válido de:   %s\n", m.Certificate.NotBefore.UTC().Format(time.RFC3339))
			fmt.Fprintf(out, "válido até:  %s\n", m.NotAfter.UTC().Format(time.RFC3339))
			fmt.Fprintf(out, "cadeia:      %d intermediário(s)\n", len(m.Chain))
			fmt.Fprintf(out, "fingerprint: %s\n", m.Fingerprint)
			if left := time.Until(m.NotAfter); left < 30*24*time.Hour {
				log.Warn().Str("subject", strings.TrimSpace(m.Certificate.Subject.CommonName)).
					Dur("remaining", left).Msg("certificado vence em menos de 30 dias")
			}
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func newCertConvertCmd() *cobra.Command {
	var (
		f   certFlags
		out string
	)
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Converte o bundle em PEM (chave, folha e cadeia)",
		Example: `  nfsectl cert convert -f empresa.pfx -p segredo -o empresa.pem`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := f.decode()
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, certstore.EncodePEM(m), 0o600); err != nil {
				return fmt.Errorf("gravar PEM: %w", err)
			}
			log.Info().Str("output", out).Time("not_after", m.NotAfter).Msg("PEM gravado")
			return nil
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVarP(&out, "output", "o", "", "arquivo PEM de saída")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}
