package api

import (
	"fmt"
	"net/url"
	"strings"
)

// Endpoint registry: the static mapping from logical operations to URL
// paths, relative to the configured base URL.

// Pessoas
func PessoasList() string           { return "/pessoas" }
func PessoasCreate() string         { return "/pessoas" }
func PessoaByID(id int64) string    { return fmt.Sprintf("/pessoas/%d", id) }
func PessoaByEmail(e string) string { return "/pessoas/by-email/" + url.PathEscape(e) }

// Alertas
func AlertasList() string            { return "/alertas" }
func AlertaByID(id int64) string     { return fmt.Sprintf("/alertas/%d", id) }
func AlertaMarkRead(id int64) string { return fmt.Sprintf("/alertas/%d/mark-read", id) }

// Metas
func MetasList() string                   { return "/metas" }
func MetasCreate() string                 { return "/metas" }
func MetaByID(id int64) string            { return fmt.Sprintf("/metas/%d", id) }
func MetasByPessoa(pessoaID int64) string { return fmt.Sprintf("/metas/pessoa/%d", pessoaID) }
func MetaMovimentacoes(id int64) string   { return fmt.Sprintf("/metas/movimentacao/%d", id) }
func MetaAtualizarSaldo(id int64) string  { return fmt.Sprintf("/metas/%d/atualizar_saldo", id) }

// Sessões
func SessoesLogin() string   { return "/sessoes/login" }
func SessoesLogout() string  { return "/sessoes/logout" }
func SessoesValidar() string { return "/sessoes/validar" }

// Open-finance proxy
func OpenFinanceConnectToken() string { return "/pluggy/connect-token" }
func OpenFinanceAccounts(itemID string) string {
	return "/pluggy/accounts/" + url.PathEscape(itemID)
}
func OpenFinanceTransactions(accountID string) string {
	return "/pluggy/transactions/" + url.PathEscape(accountID)
}

// Param is one query parameter. Empty values are treated as absent.
type Param struct {
	Key   string
	Value string
}

// BuildURL appends the defined query parameters to endpoint, preserving the
// order in which they are given.
func BuildURL(endpoint string, params ...Param) string {
	var b strings.Builder
	for _, p := range params {
		if p.Value == "" {
			continue
		}
		if b.Len() == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return endpoint + b.String()
}
