// Package fiscal contém catálogos e validações dos leiautes da NFS-e de São Paulo
// (RPS/NFTS, versão 1) e do padrão nacional (DPS 1.00).
package fiscal

import (
	"strings"
	"time"
)

// =============================================================================
// Namespaces e endpoints
// =============================================================================

const (
	NamespaceNFe   = "http://www.prefeitura.sp.gov.br/nfe"
	NamespaceNFTS  = "http://www.prefeitura.sp.gov.br/nfts"
	NamespaceDPS   = "http://www.sped.fazenda.gov.br/nfse"
	NamespaceDSig  = "http://www.w3.org/2000/09/xmldsig#"
	DPSVersion     = "1.00"
	SPLayoutVersao = "1"
)

// SPViewURLTemplate endereço público de impressão da NFS-e paulistana.
const SPViewURLTemplate = "https://nfe.prefeitura.sp.gov.br/contribuinte/notaprint.aspx?inscricao=%s&nf=%s&verificacao=%s"

// =============================================================================
// Status do RPS (StatusRPS)
// =============================================================================

const (
	RPSStatusNormal     = "N"
	RPSStatusCanceled   = "C"
	RPSStatusExtraviado = "E"
)

// RPSStatusCode converte o status interno para o código do leiaute.
// Documentos pendentes, emitidos ou com erro são enviados como Normal.
func RPSStatusCode(status string) string {
	if status == "canceled" {
		return RPSStatusCanceled
	}
	return RPSStatusNormal
}

// =============================================================================
// NFTS - Tipo de documento (TipoDocumento)
// =============================================================================

var nftsDocumentKinds = map[string]string{
	"nfe":    "01",
	"nfse":   "02",
	"cupom":  "03",
	"recibo": "04",
}

// NFTSDocumentKindCode padrão "02" (NFS-e) quando o tipo é desconhecido.
func NFTSDocumentKindCode(kind string) string {
	if c, ok := nftsDocumentKinds[strings.ToLower(kind)]; ok {
		return c
	}
	return "02"
}

// =============================================================================
// NFTS - Regime de tributação do prestador (RegimeTributacao)
// 0 Normal, 4 Simples Nacional, 5 MEI
// =============================================================================

var nftsRegimes = map[string]string{
	"simples":   "4",
	"presumido": "0",
	"real":      "0",
	"mei":       "5",
}

// NFTSRegimeCode padrão "0" (Normal).
func NFTSRegimeCode(regime string) string {
	if c, ok := nftsRegimes[strings.ToLower(regime)]; ok {
		return c
	}
	return "0"
}

// ValidTaxations códigos válidos de tributação do serviço.
var ValidTaxations = map[string]bool{"T": true, "F": true, "I": true, "N": true}

// =============================================================================
// DPS nacional
// =============================================================================

const (
	DPSEnvironmentProduction   = "1"
	DPSEnvironmentHomologation = "2"

	DPSEmitterProvider = "1" // tpEmit: prestador

	DPSInscriptionCNPJ = "1"
	DPSInscriptionCPF  = "2"

	DPSTribISSQNTaxable      = "1" // tribISSQN: operação tributável
	DPSRetISSQNNotWithheld   = "1" // tpRetISSQN: não retido
	DPSRetISSQNWithheldTaker = "2" // retido pelo tomador

	DPSIndTotTribNone = "0"
)

// BrasiliaTime fuso de Brasília. Sem horário de verão desde 2019.
var BrasiliaTime = time.FixedZone("BRT", -3*60*60)
