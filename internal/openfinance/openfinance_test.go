package openfinance

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poupafin/poupafin-go/internal/domain"
)

func TestMapTransactionDirectionAndAbsoluteValue(t *testing.T) {
	entrada := MapTransaction(domain.ExternalTransaction{
		ID:     "t1",
		Amount: decimal.NewFromFloat(150.50),
	})
	assert.Equal(t, domain.TipoEntrada, entrada.Tipo)
	assert.True(t, entrada.Valor.Equal(decimal.NewFromFloat(150.50)))

	saida := MapTransaction(domain.ExternalTransaction{
		ID:     "t2",
		Amount: decimal.NewFromFloat(-89.90),
	})
	assert.Equal(t, domain.TipoSaida, saida.Tipo)
	assert.True(t, saida.Valor.Equal(decimal.NewFromFloat(89.90)))
}

func TestMapTransactionZeroIsEntrada(t *testing.T) {
	tx := MapTransaction(domain.ExternalTransaction{ID: "t3"})
	assert.Equal(t, domain.TipoEntrada, tx.Tipo)
	assert.True(t, tx.Valor.IsZero())
}

func TestMapTransactionDefaults(t *testing.T) {
	tx := MapTransaction(domain.ExternalTransaction{
		ID:     "t4",
		Amount: decimal.NewFromInt(-10),
	})
	assert.Equal(t, "Transação", tx.Descricao)
	assert.Equal(t, "Outros", tx.Categoria)
	assert.Equal(t, "Conta", tx.OrigemPagamento)
	assert.Equal(t, "Variável", tx.Recorrencia)
}

func TestMapTransactionFallbackChain(t *testing.T) {
	tx := MapTransaction(domain.ExternalTransaction{
		ID:             "t5",
		DescriptionRaw: "PIX TRANSF",
		Provider:       "Pix",
		Amount:         decimal.NewFromInt(-42),
	})
	assert.Equal(t, "PIX TRANSF", tx.Descricao)
	assert.Equal(t, "Pix", tx.OrigemPagamento)
}

func TestGroupAccountsByBank(t *testing.T) {
	nubank := &domain.ExternalInstitution{ID: "nubank-br", Name: "Nubank"}
	accounts := []domain.ExternalAccount{
		{ID: "a1", Name: "Conta corrente", Type: "BANK", Number: "1234-5", Institution: nubank},
		{ID: "a2", Name: "Cartão de crédito", Type: "CREDIT", Institution: nubank, Status: "INACTIVE"},
		{ID: "a3", Name: "Conta Itaú"},
	}

	banks := GroupAccountsByBank(accounts)
	require.Len(t, banks, 2)

	nb := banks[0]
	assert.Equal(t, "nubank-br", nb.ID)
	assert.Equal(t, "Nubank", nb.Name)
	assert.Equal(t, "#8A05BE", nb.Color)
	require.Len(t, nb.Accounts, 2)
	assert.Equal(t, "1234-5", nb.Accounts[0].Number)
	assert.Equal(t, domain.AccountActive, nb.Accounts[0].Status)
	assert.Equal(t, domain.AccountInactive, nb.Accounts[1].Status)
	// missing account number falls back to a positional label
	assert.Equal(t, "Conta 2", nb.Accounts[1].Number)

	itau := banks[1]
	assert.Equal(t, "conta-itaú", itau.ID)
	assert.Equal(t, "CO", itau.Initials)
	assert.Equal(t, "#0F172A", itau.Color)
	require.Len(t, itau.Accounts, 1)
	assert.Equal(t, "Conta", itau.Accounts[0].Type)
}

func TestGroupAccountsNoInstitutionUsesSlug(t *testing.T) {
	banks := GroupAccountsByBank([]domain.ExternalAccount{
		{ID: "x1", Name: "Banco do Brasil"},
		{ID: "x2", Name: "Banco do Brasil"},
	})
	require.Len(t, banks, 1)
	assert.Equal(t, "banco-do-brasil", banks[0].ID)
	assert.Len(t, banks[0].Accounts, 2)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "banco-do-brasil", Slugify("Banco  do Brasil"))
	assert.Equal(t, "nubank", Slugify("Nubank"))
}
