// Package domain defines the entities managed by the sync layer and the
// request/response shapes of the Poupafin REST API. JSON tags match the
// backend wire names exactly; cached records are the server's records.
package domain

import "github.com/shopspring/decimal"

func init() {
	// The backend speaks bare JSON numbers for money fields.
	decimal.MarshalJSONWithoutQuotes = true
}

// Pessoa is the identity record that owns goals, alerts and sessions.
// Dates use the backend's "YYYY-MM-DD" format.
type Pessoa struct {
	ID             int64  `json:"id_pessoa"`
	Email          string `json:"email"`
	Nome           string `json:"nome"`
	DataNascimento string `json:"data_nascimento"`
	Telefone       string `json:"telefone"`
	Genero         string `json:"genero"`
	Estado         string `json:"estado"`
	Cidade         string `json:"cidade"`
	Rua            string `json:"rua"`
	Numero         string `json:"numero"`
	CEP            string `json:"cep"`
	DataCriacao    string `json:"data_criacao,omitempty"`
	Admin          bool   `json:"admin,omitempty"`
}

// CreatePessoa is the signup payload (includes the password).
type CreatePessoa struct {
	Email          string `json:"email" validate:"required,email"`
	Nome           string `json:"nome" validate:"required"`
	Senha          string `json:"senha" validate:"required,min=6"`
	DataNascimento string `json:"data_nascimento" validate:"required,datetime=2006-01-02"`
	Telefone       string `json:"telefone"`
	Genero         string `json:"genero"`
	Estado         string `json:"estado"`
	Cidade         string `json:"cidade"`
	Rua            string `json:"rua"`
	Numero         string `json:"numero"`
	CEP            string `json:"cep"`
}

// UpdatePessoa is a partial update; nil fields are omitted from the PATCH body.
type UpdatePessoa struct {
	Email          *string `json:"email,omitempty" validate:"omitempty,email"`
	Nome           *string `json:"nome,omitempty"`
	Senha          *string `json:"senha,omitempty" validate:"omitempty,min=6"`
	DataNascimento *string `json:"data_nascimento,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Telefone       *string `json:"telefone,omitempty"`
	Genero         *string `json:"genero,omitempty"`
	Estado         *string `json:"estado,omitempty"`
	Cidade         *string `json:"cidade,omitempty"`
	Rua            *string `json:"rua,omitempty"`
	Numero         *string `json:"numero,omitempty"`
	CEP            *string `json:"cep,omitempty"`
}
