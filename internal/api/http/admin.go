// internal/api/http/admin.go
package http

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// BasicAuth guards the admin API with a single bcrypt-hashed account.
func BasicAuth(user, passHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, p, ok := r.BasicAuth()
			userOK := subtle.ConstantTimeCompare([]byte(u), []byte(user)) == 1
			if !ok || !userOK || bcrypt.CompareHashAndPassword([]byte(passHash), []byte(p)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="lti-admin"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type consumerView struct {
	Key    int64  `json:"key"`
	Name   string `json:"name"`
	Secret string `json:"secret"`
}

// GET /admin/consumers lists consumers with masked secrets.
func ListConsumersHandler(c ConsumerAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := c.ListConsumers(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out := make([]consumerView, 0, len(list))
		for _, cons := range list {
			out = append(out, consumerView{Key: cons.Key, Name: cons.Name, Secret: cons.MaskedSecret()})
		}
		respondJSON(w, http.StatusOK, out)
	}
}

// POST /admin/consumers {"name": "..."}. The full secret is only shown here.
func CreateConsumerHandler(c ConsumerAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			http.Error(w, "name required", http.StatusBadRequest)
			return
		}
		cons, err := c.CreateConsumer(r.Context(), req.Name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		log.Ctx(r.Context()).Info().Int64("consumer_key", cons.Key).Str("name", cons.Name).Msg("consumer.created")
		respondJSON(w, http.StatusCreated, consumerView{Key: cons.Key, Name: cons.Name, Secret: cons.Secret})
	}
}
