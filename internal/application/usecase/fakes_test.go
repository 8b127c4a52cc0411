package usecase_test

import (
	"context"
	"sync"

	"github.com/jhoicas/emissor-nfse/internal/domain"
	"github.com/jhoicas/emissor-nfse/internal/domain/entity"
	"github.com/jhoicas/emissor-nfse/internal/domain/repository"
)

type memIssuers struct {
	mu   sync.Mutex
	byID map[string]entity.Issuer
}

func newMemIssuers(issuers ...*entity.Issuer) *memIssuers {
	m := &memIssuers{byID: map[string]entity.Issuer{}}
	for _, i := range issuers {
		m.byID[i.ID] = *i
	}
	return m
}

func (m *memIssuers) Create(_ context.Context, i *entity.Issuer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[i.ID] = *i
	return nil
}

func (m *memIssuers) GetByID(_ context.Context, id string) (*entity.Issuer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return &i, nil
}

func (m *memIssuers) GetByCNPJ(_ context.Context, cnpj string) (*entity.Issuer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, i := range m.byID {
		if i.CNPJ == cnpj {
			return &i, nil
		}
	}
	return nil, nil
}

func (m *memIssuers) Update(_ context.Context, i *entity.Issuer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[i.ID]; !ok {
		return domain.ErrNotFound
	}
	m.byID[i.ID] = *i
	return nil
}

func (m *memIssuers) ListByAccount(_ context.Context, accountID string, _, _ int) ([]*entity.Issuer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Issuer
	for _, i := range m.byID {
		if i.AccountID == accountID {
			i := i
			out = append(out, &i)
		}
	}
	return out, nil
}

type memDocs struct {
	mu   sync.Mutex
	byID map[string]entity.FiscalDocument
}

func newMemDocs(docs ...*entity.FiscalDocument) *memDocs {
	m := &memDocs{byID: map[string]entity.FiscalDocument{}}
	for _, d := range docs {
		m.byID[d.ID] = *d
	}
	return m
}

func (m *memDocs) Create(_ context.Context, d *entity.FiscalDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[d.ID] = *d
	return nil
}

func (m *memDocs) GetByID(_ context.Context, id string) (*entity.FiscalDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *memDocs) Update(_ context.Context, d *entity.FiscalDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[d.ID] = *d
	return nil
}

func (m *memDocs) List(_ context.Context, f repository.DocumentFilter) ([]*entity.FiscalDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.FiscalDocument
	for _, d := range m.byID {
		if d.IssuerID != f.IssuerID || (f.Status != "" && d.Status != f.Status) {
			continue
		}
		d := d
		out = append(out, &d)
	}
	return out, nil
}

func (m *memDocs) DeletePending(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if d.Status != entity.DocumentStatusPending {
		return domain.ErrConflict
	}
	delete(m.byID, id)
	return nil
}

func (m *memDocs) MaxSequence(context.Context, string, string) (int64, error) { return 0, nil }

func ownedIssuer() *entity.Issuer {
	return &entity.Issuer{
		ID:                    "iss-1",
		AccountID:             "acc-1",
		CNPJ:                  "11222333000181",
		LegalName:             "EMPRESA TESTE LTDA",
		MunicipalRegistration: "59073470",
		MunicipalityCode:      "3550308",
		Active:                true,
	}
}
