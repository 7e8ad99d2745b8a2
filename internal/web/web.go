package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Web serves the browser UI: login, the reader page, and thin proxies to the
// JSON API so the API endpoints stay behind the same cookie auth.
type Web struct {
	tpl      *template.Template
	username string
	password string
	port     string
}

func New() *Web {
	tpl := template.Must(template.ParseGlob(filepath.Join("web", "templates", "*.html")))
	return &Web{
		tpl:      tpl,
		username: os.Getenv("WEB_USERNAME"),
		password: os.Getenv("WEB_PASSWORD"),
		port:     getenv("PORT", "8080"),
	}
}

func (w *Web) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/web/login", w.handleLogin)
	mux.HandleFunc("/web/logout", w.handleLogout)
	mux.HandleFunc("/web/", w.requireAuth(w.handleReader))
	mux.HandleFunc("/web/reader", w.requireAuth(w.handleReader))
	mux.HandleFunc("/web/upload", w.requireAuth(w.handleUpload))
	mux.HandleFunc("/web/ask", w.requireAuth(w.handleAsk))
	mux.HandleFunc("/web/progress/", w.requireAuth(w.handleProgress))
	mux.HandleFunc("/web/download/", w.requireAuth(w.handleDownload))
}

func (w *Web) render(wr http.ResponseWriter, name string, data any) {
	_ = w.tpl.ExecuteTemplate(wr, name, data)
}

func (w *Web) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(wr http.ResponseWriter, r *http.Request) {
		if w.username == "" || w.password == "" {
			http.Error(wr, "WEB_USERNAME/WEB_PASSWORD not set", http.StatusForbidden)
			return
		}
		c, err := r.Cookie("auth")
		if err != nil || c.Value != "1" {
			http.Redirect(wr, r, "/web/login", http.StatusSeeOther)
			return
		}
		next(wr, r)
	}
}

func (w *Web) handleLogin(wr http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.render(wr, "login.html", map[string]any{"Error": r.URL.Query().Get("error")})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Redirect(wr, r, "/web/login?error=invalid+form", http.StatusSeeOther)
			return
		}
		if r.Form.Get("username") == w.username && r.Form.Get("password") == w.password {
			http.SetCookie(wr, &http.Cookie{Name: "auth", Value: "1", Path: "/", HttpOnly: true})
			http.Redirect(wr, r, "/web/reader", http.StatusSeeOther)
			return
		}
		http.Redirect(wr, r, "/web/login?error=invalid+credentials", http.StatusSeeOther)
	default:
		wr.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (w *Web) handleLogout(wr http.ResponseWriter, r *http.Request) {
	http.SetCookie(wr, &http.Cookie{Name: "auth", Value: "", Path: "/", MaxAge: -1})
	http.Redirect(wr, r, "/web/login", http.StatusSeeOther)
}

func (w *Web) handleReader(wr http.ResponseWriter, r *http.Request) {
	w.render(wr, "reader.html", map[string]any{
		"Username": w.username,
	})
}

// handleUpload forwards the multipart upload from the reader page to the API.
func (w *Web) handleUpload(wr http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		wr.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(wr, "invalid multipart form", http.StatusBadRequest)
		return
	}

	file, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(wr, "missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	var b bytes.Buffer
	mw := multipart.NewWriter(&b)
	fw, err := mw.CreateFormFile("file", hdr.Filename)
	if err != nil {
		http.Error(wr, "upload error", http.StatusInternalServerError)
		return
	}
	if _, err := io.Copy(fw, file); err != nil {
		http.Error(wr, "upload error", http.StatusInternalServerError)
		return
	}
	_ = mw.Close()

	url := fmt.Sprintf("http://127.0.0.1:%s/upload", w.port)
	req, _ := http.NewRequestWithContext(r.Context(), http.MethodPost, url, &b)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		http.Error(wr, "request failed", http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()
	wr.Header().Set("Content-Type", "application/json")
	wr.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(wr, resp.Body)
}

func (w *Web) handleAsk(wr http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		wr.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(wr, "invalid form", http.StatusBadRequest)
		return
	}
	body := map[string]any{
		"session_id": r.Form.Get("session_id"),
		"question":   r.Form.Get("question"),
	}
	b, _ := json.Marshal(body)
	url := fmt.Sprintf("http://127.0.0.1:%s/ask", w.port)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		http.Error(wr, "request failed", http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()
	wr.Header().Set("Content-Type", "application/json")
	wr.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(wr, resp.Body)
}

func (w *Web) handleProgress(wr http.ResponseWriter, r *http.Request) {
	docID := strings.TrimPrefix(r.URL.Path, "/web/progress/")
	url := fmt.Sprintf("http://127.0.0.1:%s/progress/%s", w.port, docID)
	resp, err := http.Get(url)
	if err != nil {
		http.Error(wr, "progress failed", http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()
	wr.Header().Set("Content-Type", "application/json")
	wr.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(wr, resp.Body)
}

// handleDownload streams the original PDF through the auth wall so the
// fallback link works from the reader page.
func (w *Web) handleDownload(wr http.ResponseWriter, r *http.Request) {
	docID := strings.TrimPrefix(r.URL.Path, "/web/download/")
	url := fmt.Sprintf("http://127.0.0.1:%s/download/%s", w.port, docID)
	resp, err := http.Get(url)
	if err != nil {
		http.Error(wr, "download failed", http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()
	for _, h := range []string{"Content-Type", "Content-Disposition"} {
		if v := resp.Header.Get(h); v != "" {
			wr.Header().Set(h, v)
		}
	}
	wr.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(wr, resp.Body)
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
