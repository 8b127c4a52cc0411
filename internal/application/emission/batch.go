package emission

import (
	domnfse "github.com/jhoicas/emissor-nfse/internal/domain/nfse"
)

// Action operação aplicada a cada documento do lote.
type Action string

const (
	ActionSubmit Action = "submit"
	ActionCancel Action = "cancel"
)

// BatchItem resultado de um documento do lote: ItemSucceeded ou ItemFailed.
type BatchItem interface {
	DocumentID() string
	batchItem()
}

// ItemSucceeded documento aceito pelo webservice.
type ItemSucceeded struct {
	ID      string
	Outcome *domnfse.SuccessOutcome
}

func (i ItemSucceeded) DocumentID() string { return i.ID }
func (ItemSucceeded) batchItem()           {}

// ItemFailed rejeição, recusa local ou falha de infraestrutura do documento.
type ItemFailed struct {
	ID      string
	Message string
	Err     error // nil quando a falha veio como FailureOutcome
}

func (i ItemFailed) DocumentID() string { return i.ID }
func (ItemFailed) batchItem()           {}

// BatchReport resultado consolidado, na ordem de entrada.
type BatchReport struct {
	Action    Action
	Items     []BatchItem
	Succeeded int
	Failed    int
}

func (r *BatchReport) add(item BatchItem) {
	r.Items = append(r.Items, item)
	switch item.(type) {
	case ItemSucceeded:
		r.Succeeded++
	case ItemFailed:
		r.Failed++
	}
}
