package domain

// Login is the credentials payload for POST /sessoes/login.
type Login struct {
	Email string `json:"email" validate:"required,email"`
	Senha string `json:"senha" validate:"required"`
}

// Sessao is an authentication record. The bearer token is mirrored into the
// credential store and attached to every subsequent request.
type Sessao struct {
	ID       int64  `json:"id_sessao"`
	PessoaID int64  `json:"fk_pessoa_id_pessoa"`
	Token    string `json:"token"`
	CriadaEm string `json:"criada_em"`
	ExpiraEm string `json:"expira_em"`
}
