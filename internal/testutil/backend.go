package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/nhle/todo-client/internal/model"
)

var backendSecret = []byte("test-backend-secret")

// RecordedRequest is a request as seen by the fake backend.
type RecordedRequest struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	Body          string
}

type backendUser struct {
	name string
	hash []byte
}

// Backend is an in-process fake of the todo REST backend. It issues HS256
// tokens, stores bcrypt password hashes and keeps todos in memory.
type Backend struct {
	server *httptest.Server

	mu       sync.Mutex
	users    map[string]backendUser
	todos    map[int64]model.Todo
	nextID   int64
	requests []RecordedRequest

	// Envelope wraps every response in {status, message, data}.
	Envelope bool
	// TokenField names the login response field carrying the token.
	TokenField string
	// RegisterIssuesToken makes registration return a token.
	RegisterIssuesToken bool
	// TokenTTL is the lifetime of issued tokens.
	TokenTTL time.Duration

	failStatus int
	delay      time.Duration
}

// NewBackend starts a fake backend that is shut down when the test ends.
func NewBackend(t *testing.T) *Backend {
	t.Helper()

	b := &Backend{
		users:      make(map[string]backendUser),
		todos:      make(map[int64]model.Todo),
		nextID:     1,
		TokenField: "accessToken",
		TokenTTL:   time.Hour,
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/auth/login", b.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/register", b.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/verify", b.authenticated(b.handleVerify)).Methods(http.MethodGet)
	r.HandleFunc("/api/todos", b.authenticated(b.handleListTodos)).Methods(http.MethodGet)
	r.HandleFunc("/api/todos", b.authenticated(b.handleCreateTodo)).Methods(http.MethodPost)
	r.HandleFunc("/api/todos/{id:[0-9]+}", b.authenticated(b.handleUpdateTodo)).Methods(http.MethodPut)
	r.HandleFunc("/api/todos/{id:[0-9]+}", b.authenticated(b.handleDeleteTodo)).Methods(http.MethodDelete)

	b.server = httptest.NewServer(b.record(r))
	t.Cleanup(b.server.Close)

	return b
}

// URL returns the base URL of the fake backend.
func (b *Backend) URL() string {
	return b.server.URL
}

// AddUser registers an account directly.
func (b *Backend) AddUser(name, email, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[strings.ToLower(email)] = backendUser{name: name, hash: hash}
}

// AddTodo stores a todo and returns it with its assigned id.
func (b *Backend) AddTodo(todo model.Todo) model.Todo {
	b.mu.Lock()
	defer b.mu.Unlock()
	todo.ID = b.nextID
	b.nextID++
	if todo.Priority == "" {
		todo.Priority = model.PriorityMedium
	}
	b.todos[todo.ID] = todo
	return todo
}

// Todos returns the stored todos ordered by id.
func (b *Backend) Todos() []model.Todo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sortedTodos()
}

// IssueToken mints a token for email that expires after ttl. A negative ttl
// yields an already expired token.
func (b *Backend) IssueToken(name, email string, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"sub":  email,
		"name": name,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(backendSecret)
	if err != nil {
		panic(err)
	}
	return token
}

// FailWith makes every authenticated endpoint answer status until reset
// with FailWith(0).
func (b *Backend) FailWith(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failStatus = status
}

// Delay holds every response for d.
func (b *Backend) Delay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = d
}

// Requests returns all recorded requests.
func (b *Backend) Requests() []RecordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]RecordedRequest, len(b.requests))
	copy(out, b.requests)
	return out
}

// RequestCount returns the number of requests made to path.
func (b *Backend) RequestCount(method, path string) int {
	n := 0
	for _, r := range b.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		b.mu.Lock()
		b.requests = append(b.requests, RecordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			Body:          string(body),
		})
		delay := b.delay
		b.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		failStatus := b.failStatus
		b.mu.Unlock()
		if failStatus != 0 {
			b.writeError(w, failStatus, http.StatusText(failStatus))
			return
		}

		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" {
			b.writeError(w, http.StatusUnauthorized, "Missing token")
			return
		}
		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return backendSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			b.writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next(w, r.WithContext(withClaims(r.Context(), claims)))
	}
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		b.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b.mu.Lock()
	user, ok := b.users[strings.ToLower(req.Email)]
	b.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(user.hash, []byte(req.Password)) != nil {
		b.writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	resp := map[string]any{
		"user": map[string]string{"name": user.name, "email": req.Email},
	}
	if b.TokenField != "" {
		resp[b.TokenField] = b.IssueToken(user.name, req.Email, b.TokenTTL)
	}
	b.writeJSON(w, http.StatusOK, "Login successful", resp)
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		b.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b.mu.Lock()
	_, exists := b.users[strings.ToLower(req.Email)]
	b.mu.Unlock()
	if exists {
		b.writeError(w, http.StatusConflict, "Email already registered")
		return
	}
	b.AddUser(req.Name, req.Email, req.Password)

	if b.RegisterIssuesToken {
		b.writeJSON(w, http.StatusCreated, "User registered", map[string]string{
			b.TokenField: b.IssueToken(req.Name, req.Email, b.TokenTTL),
		})
		return
	}
	b.writeJSON(w, http.StatusCreated, "User registered", nil)
}

func (b *Backend) handleVerify(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	subject, _ := claims.GetSubject()
	name, _ := claims["name"].(string)
	b.writeJSON(w, http.StatusOK, "Token is valid", map[string]string{
		"subject": subject,
		"name":    name,
	})
}

func (b *Backend) handleListTodos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	b.mu.Lock()
	all := b.sortedTodos()
	b.mu.Unlock()

	out := make([]model.Todo, 0, len(all))
	for _, t := range all {
		if p := q.Get("priority"); p != "" && string(t.Priority) != strings.ToUpper(p) {
			continue
		}
		if c := q.Get("category"); c != "" && !strings.EqualFold(t.Category, c) {
			continue
		}
		if c := q.Get("completed"); c != "" {
			want, err := strconv.ParseBool(c)
			if err == nil && t.Completed != want {
				continue
			}
		}
		out = append(out, t)
	}
	b.writeJSON(w, http.StatusOK, "Todos retrieved", out)
}

func (b *Backend) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	var todo model.Todo
	if err := json.NewDecoder(r.Body).Decode(&todo); err != nil {
		b.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(strings.TrimSpace(todo.Title)) == 0 {
		b.writeError(w, http.StatusBadRequest, "Title is required")
		return
	}
	todo.Completed = false
	b.writeJSON(w, http.StatusCreated, "Todo created", b.AddTodo(todo))
}

func (b *Backend) handleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		b.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b.mu.Lock()
	todo, ok := b.todos[id]
	if !ok {
		b.mu.Unlock()
		b.writeError(w, http.StatusNotFound, fmt.Sprintf("Todo not found with id %d", id))
		return
	}
	for key, raw := range fields {
		switch key {
		case "title":
			_ = json.Unmarshal(raw, &todo.Title)
		case "description":
			_ = json.Unmarshal(raw, &todo.Description)
		case "completed":
			_ = json.Unmarshal(raw, &todo.Completed)
		case "priority":
			_ = json.Unmarshal(raw, &todo.Priority)
		case "category":
			_ = json.Unmarshal(raw, &todo.Category)
		}
	}
	b.todos[id] = todo
	b.mu.Unlock()

	b.writeJSON(w, http.StatusOK, "Todo updated", todo)
}

func (b *Backend) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	b.mu.Lock()
	_, ok := b.todos[id]
	delete(b.todos, id)
	b.mu.Unlock()

	if !ok {
		b.writeError(w, http.StatusNotFound, fmt.Sprintf("Todo not found with id %d", id))
		return
	}
	if b.Envelope {
		b.writeJSON(w, http.StatusOK, "Todo deleted", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) writeJSON(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if b.Envelope {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  status,
			"message": message,
			"data":    data,
		})
		return
	}
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

func (b *Backend) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"message": message,
	})
}

// sortedTodos must be called with b.mu held.
func (b *Backend) sortedTodos() []model.Todo {
	out := make([]model.Todo, 0, len(b.todos))
	for _, t := range b.todos {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
