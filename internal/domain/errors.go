package domain

import (
	"errors"
	"fmt"
)

// Erros de domínio (sem dependências externas).
var (
	ErrNotFound           = errors.New("recurso não encontrado")
	ErrUserNotFound       = errors.New("usuário não encontrado")
	ErrEmailAlreadyExists = errors.New("o e-mail já está cadastrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrDuplicate          = errors.New("recurso duplicado")
	ErrUnauthorized       = errors.New("não autorizado")
	ErrForbidden          = errors.New("acesso negado")
	ErrConflict           = errors.New("conflito com o estado atual")
	ErrInvalidDocument    = errors.New("documento fiscal inválido")
	ErrUnsupported        = errors.New("operação não suportada para o dialeto")
)

// Motivos de CertificateError.
const (
	CertReasonMissingBundle      = "missing_bundle"
	CertReasonWrongPassword      = "wrong_password"
	CertReasonUnrecognizedFormat = "unrecognized_format"
	CertReasonNoCertificate      = "no_certificate"
	CertReasonWriteFailed        = "write_failed"
)

// CertificateError indica que o material do certificado do emissor não pôde ser obtido.
type CertificateError struct {
	Issuer string // CNPJ do emissor
	Reason string // ver CertReason*
	Err    error
}

func (e *CertificateError) Error() string {
	msg := fmt.Sprintf("certificado do emissor %s: %s", e.Issuer, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CertificateError) Unwrap() error { return e.Err }

// SignatureError indica chave inutilizável ou nó alvo ausente durante a assinatura.
type SignatureError struct {
	Step string
	Err  error
}

func (e *SignatureError) Error() string {
	if e.Err == nil {
		return "assinatura: " + e.Step
	}
	return fmt.Sprintf("assinatura: %s: %v", e.Step, e.Err)
}

func (e *SignatureError) Unwrap() error { return e.Err }

// TransportError cobre falhas de conexão, SOAP Fault, status não-2xx e timeout.
type TransportError struct {
	Operation  string
	StatusCode int // 0 quando não houve resposta HTTP
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transporte %s: HTTP %d: %v", e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transporte %s: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError indica resposta sem o indicador de sucesso ou ilegível.
type ProtocolError struct {
	Detail string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocolo: %s: %v", e.Detail, e.Err)
	}
	return "protocolo: " + e.Detail
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ValidationError aponta o campo de negócio inválido ou ausente.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// NewValidationError atalho usado pelos validadores e builders.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
