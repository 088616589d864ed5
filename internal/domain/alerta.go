package domain

// Alerta is a notification created server-side. The client only reads unread
// alerts and flips the read flag. Data is an ISO 8601 timestamp.
type Alerta struct {
	ID       int64  `json:"id_alerta"`
	PessoaID int64  `json:"fk_pessoa_id_pessoa"`
	Data     string `json:"data"`
	Conteudo string `json:"conteudo"`
	Lida     bool   `json:"lida"`
}

// MarkAlertaRead is the PATCH body flipping the read flag.
type MarkAlertaRead struct {
	Lida bool `json:"lida"`
}
