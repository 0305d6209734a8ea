package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
)

// Upstream falso para validar o gateway manualmente:
//
//	UPSTREAM_URL=http://localhost:9000 go run ./cmd/gateway
//	for i in $(seq 1 7); do curl -s -o /dev/null -w "%{http_code}\n" -X POST localhost:8080/api/auth/login -d '{"password":"x"}'; done
//
// Login com password "secret" devolve 200 (e o gateway zera a janela do cliente);
// qualquer outro devolve 401.
func main() {
	r := chi.NewRouter()

	r.Post("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "secret" {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]string{"token": "stub-token"})
	})
	r.Post("/api/auth/reset-password", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	r.Get("/api/search", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"query": r.URL.Query().Get("q"), "results": []string{}})
	})
	r.Post("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		fmt.Println("Log: acesso a", r.Method, r.URL.Path)
		writeJSON(w, map[string]string{"path": r.URL.Path})
	})

	addr := ":9000"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}
	fmt.Println("Upstream stub rodando em http://localhost" + addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		fmt.Printf("Erro ao subir o servidor: %s\n", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
