// Package apitest runs an in-process Poupafin backend for tests: the real
// REST contract (routes, payloads, status codes, bearer auth) backed by
// in-memory maps. Repository and integration tests talk to it over HTTP
// exactly as they would talk to production.
package apitest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/poupafin/poupafin-go/internal/domain"
	"github.com/poupafin/poupafin-go/internal/infra/observability"
)

type pessoaRecord struct {
	domain.Pessoa
	senhaHash []byte
}

// Server is the fake backend. All exported methods are safe for concurrent
// use; handlers and seed helpers share one mutex.
type Server struct {
	// URL is the base URL clients should use, including the /api/v1 prefix.
	URL string

	hts       *httptest.Server
	jwtSecret []byte
	logger    *zap.Logger

	mu       sync.Mutex
	pessoas  map[int64]*pessoaRecord
	metas    map[int64]*domain.Meta
	movs     map[int64][]domain.Movimentacao
	alertas  map[int64]*domain.Alerta
	sessoes  map[int64]*domain.Sessao
	nextID   int64
	requests map[string]int
	queries  map[string]string
	failNext map[string]int
}

// NewServer starts the fake backend. Call Close when done.
func NewServer(logger *zap.Logger) *Server {
	s := &Server{
		jwtSecret: []byte("poupafin-apitest-secret"),
		logger:    logger,
		pessoas:   make(map[int64]*pessoaRecord),
		metas:     make(map[int64]*domain.Meta),
		movs:      make(map[int64][]domain.Movimentacao),
		alertas:   make(map[int64]*domain.Alerta),
		sessoes:   make(map[int64]*domain.Sessao),
		requests:  make(map[string]int),
		queries:   make(map[string]string),
		failNext:  make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Route("/api/v1", s.routes)

	s.hts = httptest.NewServer(r)
	s.URL = s.hts.URL + "/api/v1"
	return s
}

func (s *Server) Close() { s.hts.Close() }

// Requests reports how many times "METHOD /path" was served, the forced
// failures included.
func (s *Server) Requests(methodAndPath string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[methodAndPath]
}

// LastQuery reports the raw query string of the most recent request
// matching "METHOD /path", empty when none carried one.
func (s *Server) LastQuery(methodAndPath string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[methodAndPath]
}

// FailNext forces the next n requests matching "METHOD /path" to answer 500.
func (s *Server) FailNext(methodAndPath string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[methodAndPath] = n
}

// SeedPessoa registers a user with a bcrypt-hashed password and returns the
// stored record.
func (s *Server) SeedPessoa(nome, email, senha string) domain.Pessoa {
	hash, err := bcrypt.GenerateFromPassword([]byte(senha), bcrypt.MinCost)
	if err != nil {
		panic(fmt.Sprintf("apitest: bcrypt: %v", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextIDLocked()
	rec := &pessoaRecord{
		Pessoa: domain.Pessoa{
			ID:          id,
			Nome:        nome,
			Email:       email,
			DataCriacao: time.Now().Format("2006-01-02"),
		},
		senhaHash: hash,
	}
	s.pessoas[id] = rec
	return rec.Pessoa
}

// SeedMeta stores a goal as-is, assigning an id when missing.
func (s *Server) SeedMeta(meta domain.Meta) domain.Meta {
	s.mu.Lock()
	defer s.mu.Unlock()
	if meta.ID == 0 {
		meta.ID = s.nextIDLocked()
	}
	if meta.Status == "" {
		meta.Status = domain.MetaEmAndamento
	}
	if meta.Categoria == "" {
		meta.Categoria = domain.CategoriaOutros
	}
	m := meta
	s.metas[m.ID] = &m
	return m
}

// SeedAlerta stores a notification.
func (s *Server) SeedAlerta(pessoaID int64, conteudo string, lida bool) domain.Alerta {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := &domain.Alerta{
		ID:       s.nextIDLocked(),
		PessoaID: pessoaID,
		Data:     time.Now().Format(time.RFC3339),
		Conteudo: conteudo,
		Lida:     lida,
	}
	s.alertas[a.ID] = a
	return *a
}

// DropSessions invalidates every issued token, so the next authenticated
// request answers 401. Used to simulate server-side session expiry.
func (s *Server) DropSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessoes = make(map[int64]*domain.Sessao)
}

func (s *Server) nextIDLocked() int64 {
	s.nextID++
	return s.nextID
}

// ============================================================
// Middleware
// ============================================================

// bookkeeping counts requests and serves forced failures. Runs inside the
// API group so the key matches what tests pass to Requests and FailNext.
func (s *Server) bookkeeping(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + strings.TrimPrefix(r.URL.Path, "/api/v1")

		s.mu.Lock()
		s.requests[key]++
		s.queries[key] = r.URL.RawQuery
		fail := s.failNext[key] > 0
		if fail {
			s.failNext[key]--
		}
		s.mu.Unlock()

		if fail {
			writeError(w, http.StatusInternalServerError, "erro interno do servidor")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type sessionClaims struct {
	SessionID int64 `json:"sid"`
	jwt.RegisteredClaims
}

// requireAuth validates the bearer token and checks the session it names
// still exists. Logout deletes the session, so a reused token fails here.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "token ausente")
			return
		}

		claims := &sessionClaims{}
		token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "token inválido ou expirado")
			return
		}

		s.mu.Lock()
		_, ok := s.sessoes[claims.SessionID]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "sessão encerrada")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) issueToken(sessao *domain.Sessao) string {
	claims := sessionClaims{
		SessionID: sessao.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", sessao.PessoaID),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			Issuer:    "poupafin-apitest",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		panic(fmt.Sprintf("apitest: sign token: %v", err))
	}
	return signed
}

