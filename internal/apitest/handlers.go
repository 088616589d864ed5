package apitest

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/poupafin/poupafin-go/internal/domain"
)

func (s *Server) routes(r chi.Router) {
	r.Use(s.bookkeeping)

	// Public
	r.Post("/sessoes/login", s.loginHandler)
	r.Post("/pessoas", s.createPessoaHandler)

	// Protected
	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Delete("/sessoes/logout", s.logoutHandler)
		r.Get("/sessoes/validar", s.validarHandler)

		r.Get("/pessoas", s.listPessoasHandler)
		r.Get("/pessoas/by-email/{email}", s.pessoaByEmailHandler)
		r.Get("/pessoas/{pessoaId}", s.getPessoaHandler)
		r.Patch("/pessoas/{pessoaId}", s.updatePessoaHandler)
		r.Delete("/pessoas/{pessoaId}", s.deletePessoaHandler)

		r.Get("/metas", s.listMetasHandler)
		r.Post("/metas", s.createMetaHandler)
		r.Get("/metas/pessoa/{pessoaId}", s.metasByPessoaHandler)
		r.Get("/metas/movimentacao/{metaId}", s.movimentacoesHandler)
		r.Get("/metas/{metaId}", s.getMetaHandler)
		r.Patch("/metas/{metaId}", s.updateMetaHandler)
		r.Delete("/metas/{metaId}", s.deleteMetaHandler)
		r.Post("/metas/{metaId}/atualizar_saldo", s.atualizarSaldoHandler)

		r.Get("/alertas", s.listAlertasHandler)
		r.Patch("/alertas/{alertaId}/mark-read", s.markAlertaReadHandler)

		r.Post("/pluggy/connect-token", s.connectTokenHandler)
		r.Get("/pluggy/accounts/{itemId}", s.pluggyAccountsHandler)
		r.Get("/pluggy/transactions/{accountId}", s.pluggyTransactionsHandler)
	})
}

// ============================================================
// Sessões
// ============================================================

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.Login
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var rec *pessoaRecord
	for _, p := range s.pessoas {
		if p.Email == req.Email {
			rec = p
			break
		}
	}
	if rec == nil || bcrypt.CompareHashAndPassword(rec.senhaHash, []byte(req.Senha)) != nil {
		writeError(w, http.StatusUnauthorized, "email ou senha inválidos")
		return
	}

	now := time.Now()
	sessao := &domain.Sessao{
		ID:       s.nextIDLocked(),
		PessoaID: rec.ID,
		CriadaEm: now.Format(time.RFC3339),
		ExpiraEm: now.Add(24 * time.Hour).Format(time.RFC3339),
	}
	sessao.Token = s.issueToken(sessao)
	s.sessoes[sessao.ID] = sessao

	writeJSON(w, http.StatusCreated, sessao)
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	claims := s.claimsFrom(r)

	s.mu.Lock()
	delete(s.sessoes, claims.SessionID)
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) validarHandler(w http.ResponseWriter, r *http.Request) {
	claims := s.claimsFrom(r)

	s.mu.Lock()
	sessao, ok := s.sessoes[claims.SessionID]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusUnauthorized, "sessão encerrada")
		return
	}
	writeJSON(w, http.StatusOK, sessao)
}

// claimsFrom re-parses the already-validated bearer token. requireAuth has
// rejected anything malformed before a handler runs.
func (s *Server) claimsFrom(r *http.Request) *sessionClaims {
	header := r.Header.Get("Authorization")
	claims := &sessionClaims{}
	jwt.ParseWithClaims(trimBearer(header), claims, func(t *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	})
	return claims
}

// ============================================================
// Pessoas
// ============================================================

func (s *Server) createPessoaHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePessoa
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}
	if req.Email == "" || req.Senha == "" {
		writeError(w, http.StatusBadRequest, "email e senha são obrigatórios")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.pessoas {
		if p.Email == req.Email {
			writeError(w, http.StatusConflict, "email já cadastrado")
			return
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Senha), bcrypt.MinCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "erro interno do servidor")
		return
	}

	rec := &pessoaRecord{
		Pessoa: domain.Pessoa{
			ID:             s.nextIDLocked(),
			Email:          req.Email,
			Nome:           req.Nome,
			DataNascimento: req.DataNascimento,
			Telefone:       req.Telefone,
			Genero:         req.Genero,
			Estado:         req.Estado,
			Cidade:         req.Cidade,
			Rua:            req.Rua,
			Numero:         req.Numero,
			CEP:            req.CEP,
			DataCriacao:    time.Now().Format("2006-01-02"),
		},
		senhaHash: hash,
	}
	s.pessoas[rec.ID] = rec

	writeJSON(w, http.StatusCreated, rec.Pessoa)
}

func (s *Server) listPessoasHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]domain.Pessoa, 0, len(s.pessoas))
	for _, p := range s.pessoas {
		out = append(out, p.Pessoa)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getPessoaHandler(w http.ResponseWriter, r *http.Request) {
	id := paramID(r, "pessoaId")

	s.mu.Lock()
	rec, ok := s.pessoas[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "pessoa não encontrada")
		return
	}
	writeJSON(w, http.StatusOK, rec.Pessoa)
}

func (s *Server) pessoaByEmailHandler(w http.ResponseWriter, r *http.Request) {
	email, _ := url.PathUnescape(chi.URLParam(r, "email"))

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pessoas {
		if p.Email == email {
			writeJSON(w, http.StatusOK, p.Pessoa)
			return
		}
	}
	writeError(w, http.StatusNotFound, "pessoa não encontrada")
}

func (s *Server) updatePessoaHandler(w http.ResponseWriter, r *http.Request) {
	id := paramID(r, "pessoaId")

	var req domain.UpdatePessoa
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.pessoas[id]
	if !ok {
		writeError(w, http.StatusNotFound, "pessoa não encontrada")
		return
	}

	if req.Email != nil {
		rec.Email = *req.Email
	}
	if req.Nome != nil {
		rec.Nome = *req.Nome
	}
	if req.Senha != nil {
		if hash, err := bcrypt.GenerateFromPassword([]byte(*req.Senha), bcrypt.MinCost); err == nil {
			rec.senhaHash = hash
		}
	}
	if req.DataNascimento != nil {
		rec.DataNascimento = *req.DataNascimento
	}
	if req.Telefone != nil {
		rec.Telefone = *req.Telefone
	}
	if req.Genero != nil {
		rec.Genero = *req.Genero
	}
	if req.Estado != nil {
		rec.Estado = *req.Estado
	}
	if req.Cidade != nil {
		rec.Cidade = *req.Cidade
	}
	if req.Rua != nil {
		rec.Rua = *req.Rua
	}
	if req.Numero != nil {
		rec.Numero = *req.Numero
	}
	if req.CEP != nil {
		rec.CEP = *req.CEP
	}

	writeJSON(w, http.StatusOK, rec.Pessoa)
}

func (s *Server) deletePessoaHandler(w http.ResponseWriter, r *http.Request) {
	id := paramID(r, "pessoaId")

	s.mu.Lock()
	_, ok := s.pessoas[id]
	delete(s.pessoas, id)
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "pessoa não encontrada")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================
// Metas
// ============================================================

func (s *Server) listMetasHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]domain.Meta, 0, len(s.metas))
	for _, m := range s.metas {
		out = append(out, *s.withOverdueLocked(m))
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getMetaHandler(w http.ResponseWriter, r *http.Request) {
	id := paramID(r, "metaId")

	s.mu.Lock()
	m, ok := s.metas[id]
	var out domain.Meta
	if ok {
		out = *s.withOverdueLocked(m)
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "meta não encontrada")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) metasByPessoaHandler(w http.ResponseWriter, r *http.Request) {
	pessoaID := paramID(r, "pessoaId")

	s.mu.Lock()
	out := make([]domain.Meta, 0)
	for _, m := range s.metas {
		if m.PessoaID == pessoaID {
			out = append(out, *s.withOverdueLocked(m))
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createMetaHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateMeta
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}
	if req.Titulo == "" || req.TerminaEm == "" {
		writeError(w, http.StatusBadRequest, "titulo e termina_em são obrigatórios")
		return
	}

	categoria := req.Categoria
	if categoria == "" {
		categoria = domain.CategoriaOutros
	}

	claims := s.claimsFrom(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	sessao := s.sessoes[claims.SessionID]

	m := &domain.Meta{
		ID:        s.nextIDLocked(),
		PessoaID:  sessao.PessoaID,
		Titulo:    req.Titulo,
		Descricao: req.Descricao,
		Categoria: categoria,
		ValorAlvo: req.ValorAlvo,
		CriadaEm:  time.Now().Format("2006-01-02"),
		TerminaEm: req.TerminaEm,
		Status:    domain.MetaEmAndamento,
	}
	s.metas[m.ID] = m

	writeJSON(w, http.StatusCreated, *m)
}

func (s *Server) updateMetaHandler(w http.ResponseWriter, r *http.Request) {
	id := paramID(r, "metaId")

	var req domain.UpdateMeta
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.metas[id]
	if !ok {
		writeError(w, http.StatusNotFound, "meta não encontrada")
		return
	}

	if req.Titulo != nil {
		m.Titulo = *req.Titulo
	}
	if req.Descricao != nil {
		m.Descricao = *req.Descricao
	}
	if req.Categoria != nil {
		m.Categoria = *req.Categoria
	}
	if req.ValorAlvo != nil {
		m.ValorAlvo = *req.ValorAlvo
	}
	if req.TerminaEm != nil {
		m.TerminaEm = *req.TerminaEm
	}
	if req.Status != nil {
		// Clients can only cancel or reactivate.
		if *req.Status != domain.MetaEmAndamento && *req.Status != domain.MetaCancelada {
			writeError(w, http.StatusBadRequest, "transição de status não permitida")
			return
		}
		m.Status = *req.Status
	}
	s.recomputeStatusLocked(m)

	writeJSON(w, http.StatusOK, *s.withOverdueLocked(m))
}

func (s *Server) deleteMetaHandler(w http.ResponseWriter, r *http.Request) {
	id := paramID(r, "metaId")

	s.mu.Lock()
	_, ok := s.metas[id]
	delete(s.metas, id)
	delete(s.movs, id)
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "meta não encontrada")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) atualizarSaldoHandler(w http.ResponseWriter, r *http.Request) {
	id := paramID(r, "metaId")

	var req domain.AtualizarSaldo
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}
	if req.Acao != domain.AcaoAdicionado && req.Acao != domain.AcaoRetirado {
		writeError(w, http.StatusBadRequest, "ação inválida")
		return
	}
	if req.Valor.IsNegative() || req.Valor.IsZero() {
		writeError(w, http.StatusBadRequest, "valor deve ser positivo")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.metas[id]
	if !ok {
		writeError(w, http.StatusNotFound, "meta não encontrada")
		return
	}

	if req.Acao == domain.AcaoAdicionado {
		m.ValorAtual = m.ValorAtual.Add(req.Valor)
	} else {
		m.ValorAtual = m.ValorAtual.Sub(req.Valor)
		if m.ValorAtual.IsNegative() {
			m.ValorAtual = decimal.Zero
		}
	}
	s.recomputeStatusLocked(m)

	s.movs[id] = append(s.movs[id], domain.Movimentacao{
		ID:     s.nextIDLocked(),
		MetaID: id,
		Acao:   req.Acao,
		Valor:  req.Valor,
		Data:   req.Data,
	})

	writeJSON(w, http.StatusOK, *m)
}

func (s *Server) movimentacoesHandler(w http.ResponseWriter, r *http.Request) {
	id := paramID(r, "metaId")

	s.mu.Lock()
	out := make([]domain.Movimentacao, len(s.movs[id]))
	copy(out, s.movs[id])
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

// recomputeStatusLocked applies the server-owned transitions: reaching the
// target completes the goal, dropping below it reopens a completed one.
func (s *Server) recomputeStatusLocked(m *domain.Meta) {
	if m.Status == domain.MetaCancelada {
		return
	}
	if m.ValorAtual.Cmp(m.ValorAlvo) >= 0 && !m.ValorAlvo.IsZero() {
		m.Status = domain.MetaConcluida
	} else if m.Status == domain.MetaConcluida {
		m.Status = domain.MetaEmAndamento
	}
}

// withOverdueLocked marks an in-progress goal atrasada once its deadline is
// in the past, at read time, the way the real backend serves it.
func (s *Server) withOverdueLocked(m *domain.Meta) *domain.Meta {
	if m.Status != domain.MetaEmAndamento || m.TerminaEm == "" {
		return m
	}
	deadline, err := time.Parse("2006-01-02", m.TerminaEm)
	if err == nil && deadline.Before(time.Now().Truncate(24*time.Hour)) {
		out := *m
		out.Status = domain.MetaAtrasada
		return &out
	}
	return m
}

// ============================================================
// Alertas
// ============================================================

func (s *Server) listAlertasHandler(w http.ResponseWriter, r *http.Request) {
	all := r.URL.Query().Get("lida") == "all"

	s.mu.Lock()
	out := make([]domain.Alerta, 0)
	for _, a := range s.alertas {
		if all || !a.Lida {
			out = append(out, *a)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) markAlertaReadHandler(w http.ResponseWriter, r *http.Request) {
	id := paramID(r, "alertaId")

	var req domain.MarkAlertaRead
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}

	s.mu.Lock()
	a, ok := s.alertas[id]
	if ok {
		a.Lida = req.Lida
	}
	var out domain.Alerta
	if ok {
		out = *a
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "alerta não encontrado")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ============================================================
// Open-finance proxy (fixtures)
// ============================================================

func (s *Server) connectTokenHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.ConnectToken{ConnectToken: "apitest-connect-token"})
}

func (s *Server) pluggyAccountsHandler(w http.ResponseWriter, r *http.Request) {
	nubank := &domain.ExternalInstitution{ID: "nubank-br", Name: "Nubank"}
	writeJSON(w, http.StatusOK, []domain.ExternalAccount{
		{ID: "acc-1", Name: "Conta corrente", Type: "BANK", Number: "1234-5", Institution: nubank},
		{ID: "acc-2", Name: "Cartão Platinum", Type: "CREDIT", Institution: nubank},
		{ID: "acc-3", Name: "Conta Poupança", Type: "BANK", Status: "INACTIVE"},
	})
}

// pluggyTransactionsHandler serves fixture transactions, honoring the
// from_date/to_date window the way the provider does. ISO dates compare
// lexicographically, so plain string comparison suffices.
func (s *Server) pluggyTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	fixtures := []domain.ExternalTransaction{
		{ID: "tx-1", Description: "Salário", Amount: decimal.NewFromInt(5000), Date: "2026-08-01", Category: "Renda"},
		{ID: "tx-2", DescriptionRaw: "MERCADO SAO JOSE", Amount: decimal.NewFromFloat(-230.40), Date: "2026-08-03"},
		{ID: "tx-3", Description: "Pix recebido", Amount: decimal.NewFromFloat(120.00), Date: "2026-08-05", PaymentMethod: "Pix"},
	}

	from := r.URL.Query().Get("from_date")
	to := r.URL.Query().Get("to_date")
	out := make([]domain.ExternalTransaction, 0, len(fixtures))
	for _, tx := range fixtures {
		if from != "" && tx.Date < from {
			continue
		}
		if to != "" && tx.Date > to {
			continue
		}
		out = append(out, tx)
	}
	writeJSON(w, http.StatusOK, out)
}

// ============================================================
// Helpers
// ============================================================

func paramID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id
}

func trimBearer(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) {
		return header[len(prefix):]
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
