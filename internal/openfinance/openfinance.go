// Package openfinance reshapes provider records into the dashboard's
// models: signed transactions become direction + absolute value, and flat
// account lists are grouped per institution.
package openfinance

import (
	"fmt"
	"strings"

	"github.com/poupafin/poupafin-go/internal/domain"
)

const (
	nubankColor  = "#8A05BE"
	defaultColor = "#0F172A"
)

// MapTransaction converts one provider transaction. The provider encodes
// direction in the sign of the amount; the dashboard wants an explicit
// tipo and a non-negative valor.
func MapTransaction(t domain.ExternalTransaction) domain.Transacao {
	tipo := domain.TipoEntrada
	if t.Amount.IsNegative() {
		tipo = domain.TipoSaida
	}

	descricao := t.Description
	if descricao == "" {
		descricao = t.DescriptionRaw
	}
	if descricao == "" {
		descricao = "Transação"
	}

	categoria := t.Category
	if categoria == "" {
		categoria = "Outros"
	}

	origem := t.PaymentMethod
	if origem == "" {
		origem = t.Provider
	}
	if origem == "" {
		origem = "Conta"
	}

	return domain.Transacao{
		ID:              t.ID,
		Data:            t.Date,
		Descricao:       descricao,
		Categoria:       categoria,
		Recorrencia:     "Variável",
		Valor:           t.Amount.Abs(),
		Tipo:            tipo,
		OrigemPagamento: origem,
	}
}

func MapTransactions(raw []domain.ExternalTransaction) []domain.Transacao {
	out := make([]domain.Transacao, 0, len(raw))
	for _, t := range raw {
		out = append(out, MapTransaction(t))
	}
	return out
}

// GroupAccountsByBank buckets linked accounts per institution, preserving
// the order in which accounts arrive. Accounts without an institution fall
// back to their own name, slugified, as the group id.
func GroupAccountsByBank(accounts []domain.ExternalAccount) []domain.Bank {
	byID := make(map[string]int)
	var banks []domain.Bank

	for _, acc := range accounts {
		name := bankName(acc)
		id := bankID(acc, name)

		idx, ok := byID[id]
		if !ok {
			idx = len(banks)
			byID[id] = idx
			banks = append(banks, domain.Bank{
				ID:       id,
				Name:     name,
				Initials: initials(name),
				Color:    bankColor(name),
			})
		}

		bank := &banks[idx]
		bank.Accounts = append(bank.Accounts, domain.BankAccount{
			ID:     acc.ID,
			Number: accountNumber(acc, len(bank.Accounts)),
			Type:   accountType(acc),
			Status: accountStatus(acc),
		})
	}

	return banks
}

func bankName(acc domain.ExternalAccount) string {
	if acc.Institution != nil && acc.Institution.Name != "" {
		return acc.Institution.Name
	}
	if acc.Name != "" {
		return acc.Name
	}
	return "Conta"
}

func bankID(acc domain.ExternalAccount, name string) string {
	if acc.Institution != nil && acc.Institution.ID != "" {
		return acc.Institution.ID
	}
	return Slugify(name)
}

// Slugify lowercases and replaces whitespace runs with a single hyphen.
func Slugify(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "-")
}

func initials(name string) string {
	runes := []rune(name)
	if len(runes) > 2 {
		runes = runes[:2]
	}
	return strings.ToUpper(string(runes))
}

func bankColor(name string) string {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "nubank") || strings.HasPrefix(lower, "nu ") {
		return nubankColor
	}
	return defaultColor
}

// accountStatus defaults to active: only an explicit "inactive" from the
// provider marks the account as such.
func accountStatus(acc domain.ExternalAccount) domain.AccountStatus {
	if strings.EqualFold(acc.Status, "inactive") {
		return domain.AccountInactive
	}
	return domain.AccountActive
}

func accountNumber(acc domain.ExternalAccount, position int) string {
	if acc.Number != "" {
		return acc.Number
	}
	return fmt.Sprintf("Conta %d", position+1)
}

func accountType(acc domain.ExternalAccount) string {
	if acc.Type != "" {
		return acc.Type
	}
	return "Conta"
}
