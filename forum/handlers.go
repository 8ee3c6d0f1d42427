// forum/handlers.go
package forum

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/rs/zerolog/hlog"
)

const (
	DefaultPageSize = 20
	maxBodyBytes    = 1 << 20
	sessionTokenKey = "token"
)

type Handlers struct {
	forum   *Forum
	Session *scs.SessionManager
}

// SessionOptions configures the session cookie that carries the bearer
// token after login. Set Secure when the server is reached over TLS.
type SessionOptions struct {
	Lifetime time.Duration
	Secure   bool
}

func NewHandlers(f *Forum, opts SessionOptions) *Handlers {
	session := scs.New()
	if opts.Lifetime > 0 {
		session.Lifetime = opts.Lifetime
	}
	session.Cookie.Secure = opts.Secure
	session.Cookie.HttpOnly = true
	session.Cookie.SameSite = http.SameSiteLaxMode
	return &Handlers{forum: f, Session: session}
}

// Handler returns the routes wrapped in session loading and access logging.
func (h *Handlers) Handler() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	var handler http.Handler = h.Session.LoadAndSave(mux)
	handler = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(handler)
	handler = hlog.RequestIDHandler("req_id", "X-Request-Id")(handler)
	return hlog.NewHandler(Logger)(handler)
}

func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/register", h.register)
	mux.HandleFunc("POST /api/auth/login", h.login)
	mux.HandleFunc("POST /api/auth/logout", h.logout)
	mux.HandleFunc("GET /api/auth/me", h.authed(h.me))

	mux.HandleFunc("GET /api/pages", h.listPages)
	mux.HandleFunc("GET /api/pages/{id}", h.getPage)
	mux.HandleFunc("GET /api/pages/name/{name}", h.getPageByName)
	mux.HandleFunc("POST /api/pages", h.adminOnly(h.createPage))
	mux.HandleFunc("DELETE /api/pages/{id}", h.adminOnly(h.deletePage))

	mux.HandleFunc("GET /api/questions/page/{pageId}", h.listQuestions)
	mux.HandleFunc("GET /api/questions/page/name/{pageName}", h.listQuestionsByPageName)
	mux.HandleFunc("GET /api/questions/{id}", h.getQuestion)
	mux.HandleFunc("POST /api/questions", h.authed(h.createQuestion))
	mux.HandleFunc("PUT /api/questions/{id}", h.authed(h.updateQuestion))
	mux.HandleFunc("DELETE /api/questions/{id}", h.authed(h.deleteQuestion))

	mux.HandleFunc("GET /api/replies/question/{questionId}", h.listReplies)
	mux.HandleFunc("POST /api/replies/question/{questionId}", h.authed(h.createReply))
	mux.HandleFunc("PUT /api/replies/{id}", h.authed(h.updateReply))
	mux.HandleFunc("DELETE /api/replies/{id}", h.authed(h.deleteReply))
}

// --- helpers ---

type authedHandler func(w http.ResponseWriter, r *http.Request, caller Identity)

// bearerToken reads the token from the Authorization header, falling back
// to the one stored in the session at login.
func (h *Handlers) bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return h.Session.GetString(r.Context(), sessionTokenKey)
}

func (h *Handlers) authed(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := h.forum.Accounts.Authenticate(r.Context(), h.bearerToken(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		next(w, r, caller)
	}
}

func (h *Handlers) adminOnly(next authedHandler) http.HandlerFunc {
	return h.authed(func(w http.ResponseWriter, r *http.Request, caller Identity) {
		if !caller.IsAdmin() {
			writeError(w, r, ErrForbidden)
			return
		}
		next(w, r, caller)
	})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Error().Err(err).Msg("error encoding response")
	}
}

type errorBody struct {
	Error  string       `json:"error"`
	Fields []FieldError `json:"fields,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	if status == http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		body.Error = "internal server error"
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Fields
	}
	writeJSON(w, status, body)
}

// paging reads the page and size query parameters, defaulting to 0 and
// DefaultPageSize.
func paging(r *http.Request) (int, int, error) {
	var v ValidationError
	page, size := 0, DefaultPageSize
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			v.add("page", "page must be an integer")
		}
		page = n
	}
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			v.add("size", "size must be an integer")
		}
		size = n
	}
	return page, size, v.err()
}

func deleted(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusOK, map[string]string{"message": what + " deleted successfully"})
}

// --- auth ---

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !readJSON(w, r, &req) {
		return
	}
	res, err := h.forum.Accounts.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.startSession(w, r, res.Token)
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !readJSON(w, r, &req) {
		return
	}
	res, err := h.forum.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.startSession(w, r, res.Token)
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) startSession(w http.ResponseWriter, r *http.Request, token string) {
	if err := h.Session.RenewToken(r.Context()); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("could not renew session")
		return
	}
	h.Session.Put(r.Context(), sessionTokenKey, token)
}

func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.forum.Accounts.Logout(r.Context(), h.bearerToken(r)); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Session.Destroy(r.Context()); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("could not destroy session")
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (h *Handlers) me(w http.ResponseWriter, r *http.Request, caller Identity) {
	writeJSON(w, http.StatusOK, caller)
}

// --- pages ---

type pageRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handlers) listPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.forum.Pages.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pages)
}

func (h *Handlers) getPage(w http.ResponseWriter, r *http.Request) {
	page, err := h.forum.Pages.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handlers) getPageByName(w http.ResponseWriter, r *http.Request) {
	page, err := h.forum.Pages.GetByName(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handlers) createPage(w http.ResponseWriter, r *http.Request, _ Identity) {
	var req pageRequest
	if !readJSON(w, r, &req) {
		return
	}
	page, err := h.forum.Pages.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handlers) deletePage(w http.ResponseWriter, r *http.Request, _ Identity) {
	if err := h.forum.Pages.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	deleted(w, "Page")
}

// --- questions ---

type questionRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	PageID      string `json:"page_id"`
}

func (h *Handlers) listQuestions(w http.ResponseWriter, r *http.Request) {
	page, size, err := paging(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	questions, err := h.forum.Questions.ListByPage(r.Context(), r.PathValue("pageId"), page, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handlers) listQuestionsByPageName(w http.ResponseWriter, r *http.Request) {
	page, size, err := paging(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	questions, err := h.forum.Questions.ListByPageName(r.Context(), r.PathValue("pageName"), page, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handlers) getQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := h.forum.Questions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handlers) createQuestion(w http.ResponseWriter, r *http.Request, caller Identity) {
	var req questionRequest
	if !readJSON(w, r, &req) {
		return
	}
	if blank(req.PageID) {
		var v ValidationError
		v.add("page_id", "page id is required")
		writeError(w, r, &v)
		return
	}
	q, err := h.forum.Questions.Create(r.Context(), caller, req.PageID, req.Title, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handlers) updateQuestion(w http.ResponseWriter, r *http.Request, caller Identity) {
	var req questionRequest
	if !readJSON(w, r, &req) {
		return
	}
	q, err := h.forum.Questions.Update(r.Context(), caller, r.PathValue("id"), req.Title, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handlers) deleteQuestion(w http.ResponseWriter, r *http.Request, caller Identity) {
	if err := h.forum.Questions.Delete(r.Context(), caller, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	deleted(w, "Question")
}

// --- replies ---

type replyRequest struct {
	Content string `json:"content"`
}

func (h *Handlers) listReplies(w http.ResponseWriter, r *http.Request) {
	replies, err := h.forum.Replies.ListByQuestion(r.Context(), r.PathValue("questionId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, replies)
}

func (h *Handlers) createReply(w http.ResponseWriter, r *http.Request, caller Identity) {
	var req replyRequest
	if !readJSON(w, r, &req) {
		return
	}
	reply, err := h.forum.Replies.Create(r.Context(), caller, r.PathValue("questionId"), req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (h *Handlers) updateReply(w http.ResponseWriter, r *http.Request, caller Identity) {
	var req replyRequest
	if !readJSON(w, r, &req) {
		return
	}
	reply, err := h.forum.Replies.Update(r.Context(), caller, r.PathValue("id"), req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (h *Handlers) deleteReply(w http.ResponseWriter, r *http.Request, caller Identity) {
	if err := h.forum.Replies.Delete(r.Context(), caller, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	deleted(w, "Reply")
}
