package domain

import "github.com/shopspring/decimal"

// MetaStatus is the lifecycle state of a savings goal. Transitions to
// Concluida and Atrasada are server-owned; the client only ever sends
// EmAndamento or Cancelada (cancel/reactivate).
type MetaStatus string

const (
	MetaEmAndamento MetaStatus = "em_andamento"
	MetaConcluida   MetaStatus = "concluida"
	MetaCancelada   MetaStatus = "cancelada"
	MetaAtrasada    MetaStatus = "atrasada"
)

// MetaCategoria classifies a goal. The backend defaults to Outros when the
// creation payload omits the category.
type MetaCategoria string

const (
	CategoriaViagem     MetaCategoria = "Viagem"
	CategoriaCompras    MetaCategoria = "Compras"
	CategoriaEmergencia MetaCategoria = "Emergência"
	CategoriaOutros     MetaCategoria = "Outros"
)

// Meta is a financial savings target. ValorAtual is server-computed: it only
// changes through the balance-update operation, never through a field write.
type Meta struct {
	ID         int64           `json:"id_meta"`
	PessoaID   int64           `json:"fk_pessoa_id_pessoa"`
	Titulo     string          `json:"titulo"`
	Descricao  string          `json:"descricao"`
	Categoria  MetaCategoria   `json:"categoria"`
	ValorAlvo  decimal.Decimal `json:"valor_alvo"`
	ValorAtual decimal.Decimal `json:"valor_atual"`
	CriadaEm   string          `json:"criada_em"`
	TerminaEm  string          `json:"termina_em"`
	Status     MetaStatus      `json:"status"`
}

// CreateMeta is the goal creation payload. Categoria is optional.
type CreateMeta struct {
	Titulo    string          `json:"titulo" validate:"required,max=50"`
	Descricao string          `json:"descricao"`
	Categoria MetaCategoria   `json:"categoria,omitempty" validate:"omitempty,oneof=Viagem Compras Emergência Outros"`
	ValorAlvo decimal.Decimal `json:"valor_alvo" validate:"required"`
	TerminaEm string          `json:"termina_em" validate:"required,datetime=2006-01-02"`
}

// UpdateMeta is a partial goal update. ValorAtual is deliberately absent:
// balance changes go through AtualizarSaldo.
type UpdateMeta struct {
	Titulo    *string          `json:"titulo,omitempty" validate:"omitempty,max=50"`
	Descricao *string          `json:"descricao,omitempty"`
	Categoria *MetaCategoria   `json:"categoria,omitempty" validate:"omitempty,oneof=Viagem Compras Emergência Outros"`
	ValorAlvo *decimal.Decimal `json:"valor_alvo,omitempty"`
	TerminaEm *string          `json:"termina_em,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Status    *MetaStatus      `json:"status,omitempty" validate:"omitempty,oneof=em_andamento cancelada"`
}

// MovimentoAcao is the direction of a goal ledger entry.
type MovimentoAcao string

const (
	AcaoAdicionado MovimentoAcao = "adicionado"
	AcaoRetirado   MovimentoAcao = "retirado"
)

// AtualizarSaldo is the balance-update payload: a positive amount plus the
// direction. The server records the movement and returns the updated goal.
type AtualizarSaldo struct {
	Acao  MovimentoAcao   `json:"acao" validate:"required,oneof=adicionado retirado"`
	Valor decimal.Decimal `json:"valor" validate:"required"`
	Data  string          `json:"data" validate:"required,datetime=2006-01-02"`
}

// Movimentacao is an append-only ledger entry against a goal. Created only as
// a side effect of a balance update; never written by the client.
type Movimentacao struct {
	ID     int64           `json:"id_movimentacao"`
	MetaID int64           `json:"fk_meta_id_meta"`
	Acao   MovimentoAcao   `json:"acao"`
	Valor  decimal.Decimal `json:"valor"`
	Data   string          `json:"data"`
}
