// Command vulnapi serves a deliberately weak API for exercising the
// scanner end to end. Never expose it outside a lab network.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/apivet/apivet/pkg/jsonutil"
)

type user struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	IsAdmin bool   `json:"isAdmin,omitempty"`
	Balance int    `json:"balance"`
}

type store struct {
	mu    sync.Mutex
	users map[string]user
}

func newStore() *store {
	return &store{users: map[string]user{
		"1":     {ID: "1", Name: "Alice", Email: "alice@example.com", Role: "user", Balance: 100},
		"2":     {ID: "2", Name: "Bob", Email: "bob@example.com", Role: "user", Balance: 200},
		"admin": {ID: "admin", Name: "Admin", Email: "admin@example.com", Role: "admin", Balance: 999999},
	}}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsonutil.MarshalWrite(w, v, "")
}

func main() {
	addr := flag.String("addr", ":5000", "listen address")
	flag.Parse()

	db := newStore()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"message":   "Test API Server",
			"version":   "1.0.0",
			"endpoints": []string{"/api/user/{id}", "/api/users", "/api/admin", "/api/login"},
		})
	})

	// No authorization check on object access.
	mux.HandleFunc("GET /api/user/{id}", func(w http.ResponseWriter, r *http.Request) {
		db.mu.Lock()
		u, ok := db.users[r.PathValue("id")]
		db.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "User not found"})
			return
		}
		writeJSON(w, http.StatusOK, u)
	})

	// No authentication on the admin panel.
	mux.HandleFunc("GET /api/admin", func(w http.ResponseWriter, r *http.Request) {
		db.mu.Lock()
		defer db.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"message":        "Admin panel",
			"users":          db.users,
			"sensitive_data": "This should be protected!",
		})
	})

	// Accepts weak passwords.
	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		var creds struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		_ = jsonutil.UnmarshalRead(r.Body, &creds)
		weak := map[string]bool{"password": true, "123456": true, "admin": true}
		if creds.Username == "admin" && weak[creds.Password] {
			tok := make([]byte, 16)
			_, _ = rand.Read(tok)
			writeJSON(w, http.StatusOK, map[string]string{
				"token":   hex.EncodeToString(tok),
				"message": "Login successful",
			})
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
	})

	// Mass assignment: role, isAdmin and balance come straight from the
	// request body.
	mux.HandleFunc("POST /api/users", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = jsonutil.UnmarshalRead(r.Body, &body)

		db.mu.Lock()
		u := user{
			ID:      strconv.Itoa(len(db.users) + 1),
			Name:    str(body, "name", "Unknown"),
			Email:   str(body, "email", "unknown@example.com"),
			Role:    str(body, "role", "user"),
			IsAdmin: boolVal(body, "isAdmin"),
			Balance: intVal(body, "balance"),
		}
		db.users[u.ID] = u
		db.mu.Unlock()
		writeJSON(w, http.StatusCreated, u)
	})

	// No rate limiting.
	mux.HandleFunc("GET /api/unlimited", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Request processed"})
	})

	// Leaks database errors for metacharacter input.
	mux.HandleFunc("GET /api/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if strings.Contains(q, "'") || strings.Contains(q, "--") || strings.Contains(strings.ToUpper(q), "OR") {
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error":   "SQL syntax error near '" + q + "'",
				"message": "sqlite3.OperationalError: unrecognized token",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": []string{}, "query": q})
	})

	// Publicly accessible documentation.
	mux.HandleFunc("GET /api-docs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"swagger": "2.0",
			"info":    map[string]string{"title": "Test API", "version": "1.0.0"},
			"paths": map[string]any{
				"/api/user/{id}": map[string]any{"get": map[string]string{"summary": "Get user by ID"}},
				"/api/admin":     map[string]any{"get": map[string]string{"summary": "Admin panel (should be protected!)"}},
			},
		})
	})

	fmt.Printf("vulnapi: intentionally vulnerable test server on %s\n", *addr)
	fmt.Println("vulnapi: DO NOT expose outside a lab network")
	// Security headers deliberately absent.
	log.Fatal(http.ListenAndServe(*addr, mux))
}

func str(m map[string]any, key, def string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return def
}

func boolVal(m map[string]any, key string) bool {
	v, _ := m[key].(bool)
	return v
}

func intVal(m map[string]any, key string) int {
	if v, ok := m[key].(float64); ok {
		return int(v)
	}
	return 0
}
