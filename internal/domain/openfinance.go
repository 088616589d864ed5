package domain

import "github.com/shopspring/decimal"

// Shapes for the open-finance aggregation proxy. These records are owned by
// the external provider; the client only reads and re-shapes them.

// ExternalInstitution identifies the bank behind a linked account.
type ExternalInstitution struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ExternalAccount is a linked bank account as reported by the provider.
type ExternalAccount struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Type        string               `json:"type"`
	Number      string               `json:"number,omitempty"`
	Status      string               `json:"status,omitempty"`
	Institution *ExternalInstitution `json:"institution,omitempty"`
}

// ExternalTransaction is a provider transaction. Amount carries the sign:
// positive is an inflow, negative an outflow.
type ExternalTransaction struct {
	ID             string          `json:"id"`
	Description    string          `json:"description,omitempty"`
	DescriptionRaw string          `json:"descriptionRaw,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Date           string          `json:"date,omitempty"`
	Category       string          `json:"category,omitempty"`
	PaymentMethod  string          `json:"paymentMethod,omitempty"`
	Provider       string          `json:"provider,omitempty"`
}

// ConnectToken is the widget token returned by the connect-token endpoint.
type ConnectToken struct {
	ConnectToken string `json:"connectToken"`
}

// TipoTransacao is the direction of a dashboard transaction.
type TipoTransacao string

const (
	TipoEntrada TipoTransacao = "entrada"
	TipoSaida   TipoTransacao = "saida"
)

// Transacao is the dashboard-facing view of an external transaction:
// absolute value plus an explicit direction.
type Transacao struct {
	ID              string          `json:"id"`
	Data            string          `json:"data"`
	Descricao       string          `json:"descricao"`
	Categoria       string          `json:"categoria"`
	Recorrencia     string          `json:"recorrencia"`
	Valor           decimal.Decimal `json:"valor"`
	Tipo            TipoTransacao   `json:"tipo"`
	OrigemPagamento string          `json:"origem_pagamento"`
}

// AccountStatus marks a linked account as usable or not. Accounts default to
// active unless the provider explicitly reports otherwise.
type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountInactive AccountStatus = "inactive"
)

// BankAccount is one account inside a Bank group.
type BankAccount struct {
	ID     string        `json:"id"`
	Number string        `json:"number"`
	Type   string        `json:"type"`
	Status AccountStatus `json:"status"`
}

// Bank groups linked accounts by institution for display.
type Bank struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Initials string        `json:"initials"`
	Color    string        `json:"color"`
	Accounts []BankAccount `json:"accounts"`
}
