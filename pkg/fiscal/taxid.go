package fiscal

import (
	"fmt"
	"unicode"
)

// pesos do módulo 11 da Receita Federal, aplicados da esquerda para a direita.
var (
	cnpjWeights1 = [12]int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights2 = [13]int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// OnlyDigits remove pontuação de CPF/CNPJ/CEP ("12.345.678/0001-95" -> "12345678000195").
func OnlyDigits(s string) string {
	return string(extractDigits(s))
}

// ValidateCNPJ valida os dois dígitos verificadores do CNPJ (com ou sem máscara).
func ValidateCNPJ(taxID string) error {
	digits := extractDigits(taxID)
	if len(digits) != 14 {
		return fmt.Errorf("fiscal: CNPJ deve ter 14 dígitos, encontrados %d", len(digits))
	}
	if allEqual(digits) {
		return fmt.Errorf("fiscal: CNPJ inválido")
	}
	dv1 := checkDigit(digits[:12], cnpjWeights1[:])
	dv2 := checkDigit(digits[:13], cnpjWeights2[:])
	if digits[12] != dv1 || digits[13] != dv2 {
		return fmt.Errorf("fiscal: dígitos verificadores do CNPJ inválidos: esperado %c%c, recebido %c%c",
			dv1, dv2, digits[12], digits[13])
	}
	return nil
}

// ValidateCPF valida os dois dígitos verificadores do CPF.
func ValidateCPF(taxID string) error {
	digits := extractDigits(taxID)
	if len(digits) != 11 {
		return fmt.Errorf("fiscal: CPF deve ter 11 dígitos, encontrados %d", len(digits))
	}
	if allEqual(digits) {
		return fmt.Errorf("fiscal: CPF inválido")
	}
	w1 := make([]int, 9)
	for i := range w1 {
		w1[i] = 10 - i
	}
	w2 := make([]int, 10)
	for i := range w2 {
		w2[i] = 11 - i
	}
	dv1 := checkDigit(digits[:9], w1)
	dv2 := checkDigit(digits[:10], w2)
	if digits[9] != dv1 || digits[10] != dv2 {
		return fmt.Errorf("fiscal: dígitos verificadores do CPF inválidos")
	}
	return nil
}

// ValidateTaxID decide entre CPF e CNPJ pelo número de dígitos.
func ValidateTaxID(taxID string) error {
	if len(extractDigits(taxID)) <= 11 {
		return ValidateCPF(taxID)
	}
	return ValidateCNPJ(taxID)
}

// IsCPF indica se o identificador tem tamanho de CPF (regra usada pelos leiautes de SP).
func IsCPF(taxID string) bool {
	return len(extractDigits(taxID)) <= 11
}

// FormatCNPJ aplica a máscara 00.000.000/0000-00; devolve a entrada se não tiver 14 dígitos.
func FormatCNPJ(cnpj string) string {
	d := OnlyDigits(cnpj)
	if len(d) != 14 {
		return cnpj
	}
	return d[:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:]
}

func checkDigit(base []byte, weights []int) byte {
	var sum int
	for i, d := range base {
		sum += int(d-'0') * weights[i]
	}
	r := sum % 11
	if r < 2 {
		return '0'
	}
	return byte('0' + (11 - r))
}

func allEqual(digits []byte) bool {
	for _, d := range digits[1:] {
		if d != digits[0] {
			return false
		}
	}
	return true
}

func extractDigits(s string) []byte {
	var out []byte
	for _, r := range s {
		if unicode.IsDigit(r) {
			out = append(out, byte(r))
		}
	}
	return out
}
