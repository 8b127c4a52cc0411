package cli

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	domnfse "github.com/jhoicas/emissor-nfse/internal/domain/nfse"
	"github.com/jhoicas/emissor-nfse/pkg/fiscal"
)

func newPayloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payload",
		Short: "Cadeias de assinatura do leiaute de São Paulo",
	}
	cmd.AddCommand(newPayloadRPSCmd(), newPayloadCancelCmd())
	return cmd
}

func newPayloadRPSCmd() *cobra.Command {
	var (
		p                       domnfse.LegacyPayloadParams
		date, value, deductions string
	)
	cmd := &cobra.Command{
		Use:   "rps",
		Short: "Imprime a cadeia de 86 caracteres assinada no RPS",
		Long: `Monta a cadeia de largura fixa que vai assinada no campo Assinatura do RPS.
Útil para comparar com a cadeia gerada por outro sistema quando a prefeitura devolve erro de assinatura.`,
		Example: `  nfsectl payload rps --im 31000000 --series OL03 --number 1 --date 2007-01-03 \
    --value 20500 --service-code 2658 --taker 13167474254`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if p.IssueDate, err = time.ParseInLocation("2006-01-02", date, fiscal.BrasiliaTime); err != nil {
				return fmt.Errorf("--date: use AAAA-MM-DD")
			}
			if p.ServiceValue, err = decimal.NewFromString(value); err != nil {
				return fmt.Errorf("--value: %w", err)
			}
			if p.Deductions, err = decimal.NewFromString(deductions); err != nil {
				return fmt.Errorf("--deductions: %w", err)
			}
			out, err := domnfse.NewLegacyPayloadBuilder().Build(&p)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&p.MunicipalRegistration, "im", "", "inscrição municipal do prestador")
	fl.StringVar(&p.Series, "series", "1", "série do RPS")
	fl.StringVar(&p.Number, "number", "", "número do RPS")
	fl.StringVar(&date, "date", "", "data de emissão AAAA-MM-DD")
	fl.StringVar(&p.Taxation, "taxation", "T", "tributação: T, F, I ou N")
	fl.StringVar(&p.Status, "status", fiscal.RPSStatusNormal, "situação: N, C ou E")
	fl.BoolVar(&p.ISSWithheld, "withheld", false, "ISS retido pelo tomador")
	fl.StringVar(&value, "value", "0", "valor dos serviços")
	fl.StringVar(&deductions, "deductions", "0", "valor das deduções")
	fl.StringVar(&p.ServiceCode, "service-code", "", "código do serviço")
	fl.StringVar(&p.TakerTaxID, "taker", "", "CPF ou CNPJ do tomador")
	for _, name := range []string{"im", "number", "date", "service-code", "taker"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newPayloadCancelCmd() *cobra.Command {
	var im, number string
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Imprime a cadeia de cancelamento (inscrição + número da NFS-e)",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := domnfse.NewLegacyPayloadBuilder().BuildCancel(im, number)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&im, "im", "", "inscrição municipal do prestador")
	cmd.Flags().StringVar(&number, "number", "", "número da NFS-e")
	_ = cmd.MarkFlagRequired("im")
	_ = cmd.MarkFlagRequired("number")
	return cmd
}
