package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config agrupa a configuração da aplicação (Viper: variáveis de ambiente e, opcionalmente, arquivo).
type Config struct {
	App  AppConfig
	DB   DBConfig
	JWT  JWTConfig
	HTTP HTTPConfig
	NFSe NFSeConfig
}

// AppConfig configuração geral.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// DBConfig configuração do PostgreSQL.
// Com DatabaseURL preenchido, ele é usado como connection string completa.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string

	MaxConns              int  // 0: padrão do pgxpool
	MinConns              int
	ConnectTimeoutSeconds int
	LogQueries            bool // trace das queries em debug, sem argumentos
}

// ConnectionString DATABASE_URL quando definido; senão o DSN montado.
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN connection string com a senha codificada (caracteres especiais).
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// JWTConfig configuração do JWT.
type JWTConfig struct {
	Secret     string
	Expiration int // minutos
	Issuer     string
}

// HTTPConfig configuração do servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr endereço de escuta (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NFSeConfig endpoints, diretório de certificados e limites do pipeline de emissão.
type NFSeConfig struct {
	CertDir                string // bundles .pfx e PEM derivados
	SPNFeURL               string
	SPNFTSURL              string
	NationalURL            string
	Environment            string // tpAmb: 1 produção, 2 homologação
	AppVersion             string // verAplic da DPS
	TimeoutSeconds         int    // timeout HTTP por chamada
	DocumentTimeoutSeconds int    // orçamento total por documento
	ExpiryWarningDays      int
}

// Timeout duração do timeout HTTP.
func (c NFSeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DocumentTimeout duração do orçamento por documento.
func (c NFSeConfig) DocumentTimeout() time.Duration {
	return time.Duration(c.DocumentTimeoutSeconds) * time.Second
}

// ExpiryWarning janela de aviso de vencimento do certificado.
func (c NFSeConfig) ExpiryWarning() time.Duration {
	return time.Duration(c.ExpiryWarningDays) * 24 * time.Hour
}

// Load lê a configuração. Variáveis de ambiente têm prioridade: APP_ENV, DB_HOST, NFSE_CERT_DIR etc.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // arquivo opcional

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "emissor-nfse"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "emissor_nfse"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),

			MaxConns:              getInt(v, "DB_MAX_CONNS", 10),
			MinConns:              getInt(v, "DB_MIN_CONNS", 2),
			ConnectTimeoutSeconds: getInt(v, "DB_CONNECT_TIMEOUT_SECONDS", 10),
			LogQueries:            getBool(v, "DB_LOG_QUERIES", false),
		},
		JWT: JWTConfig{
			Secret:     getString(v, "JWT_SECRET", ""),
			Expiration: getInt(v, "JWT_EXPIRATION_MINUTES", 60),
			Issuer:     getString(v, "JWT_ISSUER", "emissor-nfse"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		NFSe: NFSeConfig{
			CertDir:                getString(v, "NFSE_CERT_DIR", "./certs"),
			SPNFeURL:               getString(v, "NFSE_SP_NFE_URL", ""),
			SPNFTSURL:              getString(v, "NFSE_SP_NFTS_URL", ""),
			NationalURL:            getString(v, "NFSE_NATIONAL_URL", ""),
			Environment:            getString(v, "NFSE_ENVIRONMENT", "2"),
			AppVersion:             getString(v, "NFSE_APP_VERSION", "emissor-nfse"),
			TimeoutSeconds:         getInt(v, "NFSE_TIMEOUT_SECONDS", 60),
			DocumentTimeoutSeconds: getInt(v, "NFSE_DOCUMENT_TIMEOUT_SECONDS", 60),
			ExpiryWarningDays:      getInt(v, "NFSE_EXPIRY_WARNING_DAYS", 30),
		},
	}

	if cfg.NFSe.Environment != "1" && cfg.NFSe.Environment != "2" {
		return nil, fmt.Errorf("config: NFSE_ENVIRONMENT deve ser 1 ou 2, recebido %q", cfg.NFSe.Environment)
	}
	return cfg, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if v.IsSet(key) {
		return v.GetBool(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, err := strconv.Atoi(v.GetString(key))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}
