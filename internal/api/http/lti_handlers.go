package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-lti/internal/lti"
)

// MountLTI registers the launch endpoints. Each one exercises a
// verification mode or role requirement and answers with a short body.
func MountLTI(r chi.Router, t *lti.Tool) {
	protect := func(mode lti.Mode, role string, h lti.Handler) http.Handler {
		return t.Protect(lti.Options{Requirements: lti.Requirements{Mode: mode, Role: role}}, h)
	}

	r.Method(http.MethodGet, "/any", protect(lti.ModeAny, "", text("any")))
	r.Method(http.MethodPost, "/any", protect(lti.ModeAny, "", text("any")))
	r.Method(http.MethodPost, "/initial", protect(lti.ModeInitial, "", text("initial")))
	r.Method(http.MethodGet, "/session", protect(lti.ModeSession, "", text("hi")))
	r.Method(http.MethodGet, "/name", protect(lti.ModeAny, "", nameHandler))
	r.Method(http.MethodPost, "/name", protect(lti.ModeAny, "", nameHandler))
	r.Method(http.MethodPost, "/close_session", protect(lti.ModeSession, "", closeSessionHandler))
	r.Method(http.MethodPost, "/post_grade/{grade}", protect(lti.ModeSession, "", postGradeHandler))
	r.Method(http.MethodPost, "/post_grade2/{grade}", protect(lti.ModeSession, "", postGrade2Handler))
	r.Method(http.MethodPost, "/initial_staff", protect(lti.ModeInitial, "staff", text("hi")))
	r.Method(http.MethodPost, "/initial_student", protect(lti.ModeInitial, "student", text("hi")))
	r.Method(http.MethodPost, "/initial_unknown", protect(lti.ModeInitial, "unknown", text("hi")))
	r.Method(http.MethodPost, "/unknown_protection", protect("notreal", "", text("hi")))
	r.Method(http.MethodGet, "/session_info", protect(lti.ModeSession, "", sessionInfoHandler))
}

func text(body string) lti.Handler {
	return func(w http.ResponseWriter, _ *http.Request, _ *lti.Launch) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}
}

func nameHandler(w http.ResponseWriter, r *http.Request, l *lti.Launch) {
	text(l.Name(r.Context()))(w, r, l)
}

func closeSessionHandler(w http.ResponseWriter, r *http.Request, l *lti.Launch) {
	if err := l.Close(r.Context()); err != nil {
		lti.DefaultError(w, r, err)
		return
	}
	text("hi")(w, r, l)
}

func gradeParam(r *http.Request) (float64, error) {
	raw := chi.URLParam(r, "grade")
	g, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid grade %q", raw)
	}
	return g, nil
}

func postGradeHandler(w http.ResponseWriter, r *http.Request, l *lti.Launch) {
	grade, err := gradeParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ok, err := l.PostGrade(r.Context(), grade)
	if err != nil {
		lti.DefaultError(w, r, err)
		return
	}
	text(fmt.Sprintf("grade=%t", ok))(w, r, l)
}

func postGrade2Handler(w http.ResponseWriter, r *http.Request, l *lti.Launch) {
	grade, err := gradeParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ok, err := l.PostGrade2(r.Context(), grade, "", "")
	if err != nil {
		lti.DefaultError(w, r, err)
		return
	}
	text(fmt.Sprintf("grade=%t", ok))(w, r, l)
}

type sessionInfo struct {
	UserID      string            `json:"user_id"`
	LocalUserID int64             `json:"local_user_id"`
	Name        string            `json:"name"`
	Roles       []string          `json:"roles"`
	Values      map[string]string `json:"values"`
}

func sessionInfoHandler(w http.ResponseWriter, r *http.Request, l *lti.Launch) {
	respondJSON(w, http.StatusOK, sessionInfo{
		UserID:      l.UserID(),
		LocalUserID: l.LocalUserID(),
		Name:        l.Name(r.Context()),
		Roles:       l.Roles(),
		Values:      l.Values(),
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
