package nfse

import (
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/jhoicas/emissor-nfse/internal/domain"
	"github.com/jhoicas/emissor-nfse/internal/infrastructure/nfse/signer"
	"github.com/jhoicas/emissor-nfse/pkg/fiscal"
)

// dhEmi recuado para não ficar à frente do relógio da SEFIN.
const emissionClockSkew = 2 * time.Minute

// DPSBuilderService monta a DPS (leiaute nacional 1.00) assinada em infDPS.
type DPSBuilderService struct {
	environment string // tpAmb
	appVersion  string // verAplic
	now         func() time.Time
}

// NewDPSBuilderService environment "1" produção ou "2" homologação.
func NewDPSBuilderService(environment, appVersion string) *DPSBuilderService {
	if environment == "" {
		environment = fiscal.DPSEnvironmentHomologation
	}
	if appVersion == "" {
		appVersion = "emissor-nfse"
	}
	return &DPSBuilderService{environment: environment, appVersion: appVersion, now: time.Now}
}

// WithClock substitui o relógio (testes).
func (s *DPSBuilderService) WithClock(now func() time.Time) *DPSBuilderService {
	s.now = now
	return s
}

// DPSID Id do infDPS: "DPS" + cMun(7) + tpInsc(1) + inscrição(14) + série(5) + nDPS(15).
func DPSID(municipalityCode, inscriptionType, taxID, series string, number int64) string {
	return "DPS" +
		leftZero(fiscal.OnlyDigits(municipalityCode), 7) +
		inscriptionType +
		leftZero(fiscal.OnlyDigits(taxID), 14) +
		leftZero(strings.TrimSpace(series), 5) +
		leftZero(strconv.FormatInt(number, 10), 15)
}

// BuildDPS DPS com Signature RSA-SHA256 referenciando o Id do infDPS.
func (s *DPSBuilderService) BuildDPS(ctx *BuildContext) (*Envelope, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	doc, iss := ctx.Document, ctx.Issuer
	if doc.SequenceNumber == nil {
		return nil, domain.NewValidationError("sequence_number", "nDPS não alocado")
	}
	cnpj := fiscal.OnlyDigits(iss.CNPJ)
	inscType := fiscal.DPSInscriptionCNPJ
	if fiscal.IsCPF(cnpj) {
		inscType = fiscal.DPSInscriptionCPF
	}
	series := leftZero(strings.TrimSpace(doc.Series), 5)
	id := DPSID(iss.MunicipalityCode, inscType, cnpj, series, *doc.SequenceNumber)

	competence := doc.CompetenceDate
	if competence.IsZero() {
		competence = doc.IssueDate
	}

	xdoc := etree.NewDocument()
	xdoc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := xdoc.CreateElement("DPS")
	root.CreateAttr("xmlns", fiscal.NamespaceDPS)
	root.CreateAttr("versao", fiscal.DPSVersion)

	inf := root.CreateElement("infDPS")
	inf.CreateAttr("Id", id)
	text(inf, "tpAmb", s.environment)
	text(inf, "dhEmi", s.now().Add(-emissionClockSkew).In(fiscal.BrasiliaTime).Format("2006-01-02T15:04:05-07:00"))
	text(inf, "verAplic", s.appVersion)
	text(inf, "serie", series)
	text(inf, "nDPS", strconv.FormatInt(*doc.SequenceNumber, 10))
	text(inf, "dCompet", competence.Format("2006-01-02"))
	text(inf, "tpEmit", fiscal.DPSEmitterProvider)
	text(inf, "cLocEmi", iss.MunicipalityCode)

	prest := inf.CreateElement("prest")
	taxIDElement(prest, cnpj)
	text(prest, "xNome", iss.LegalName)
	reg := prest.CreateElement("regTrib")
	text(reg, "opSimpNac", nonEmpty(iss.SimplesNacional, "1"))
	text(reg, "regEspTrib", nonEmpty(iss.SpecialRegime, "0"))

	toma := inf.CreateElement("toma")
	taxIDElement(toma, doc.Taker.TaxID)
	text(toma, "xNome", doc.Taker.Name)
	if strings.TrimSpace(doc.Taker.Street) != "" {
		end := toma.CreateElement("end")
		endNac := end.CreateElement("endNac")
		text(endNac, "cMun", nonEmpty(doc.Taker.MunicipalityCode, iss.MunicipalityCode))
		text(endNac, "CEP", fiscal.OnlyDigits(doc.Taker.ZipCode))
		text(end, "xLgr", doc.Taker.Street)
		text(end, "nro", nonEmpty(doc.Taker.Number, "S/N"))
		text(end, "xBairro", nonEmpty(doc.Taker.District, "-"))
	}

	serv := inf.CreateElement("serv")
	text(serv.CreateElement("locPrest"), "cLocPrestacao", iss.MunicipalityCode)
	cServ := serv.CreateElement("cServ")
	text(cServ, "cTribNac", fiscal.OnlyDigits(doc.NationalTaxCode))
	text(cServ, "xDescServ", truncateRunes(strings.TrimSpace(doc.ServiceDescription), 2000))

	valores := inf.CreateElement("valores")
	text(valores.CreateElement("vServPrest"), "vServ", dpsMoney(doc.GrossValue))
	trib := valores.CreateElement("trib")
	mun := trib.CreateElement("tribMun")
	text(mun, "tribISSQN", fiscal.DPSTribISSQNTaxable)
	retention := fiscal.DPSRetISSQNNotWithheld
	if doc.ISSWithheld {
		retention = fiscal.DPSRetISSQNWithheldTaker
	}
	text(mun, "tpRetISSQN", retention)
	text(mun, "pAliq", dpsMoney(doc.ISSRate))
	text(trib.CreateElement("totTrib"), "indTotTrib", fiscal.DPSIndTotTribNone)

	return &Envelope{
		Operation: OpEnvioDPS,
		Doc:       xdoc,
		Sign: signer.SignOptions{
			Algorithm:          signer.RSASHA256,
			ReferenceID:        id,
			IncludeCertificate: true,
		},
	}, nil
}

func leftZero(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
