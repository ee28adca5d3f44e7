// Package handler contains the HTTP handlers of the flair site.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming HTTP request (query params, form values, JSON body)
// 2. Call the services
// 3. Write the HTTP response (status code, headers, body)
//
// Handlers hold no business logic. They are the glue between HTTP and the
// service layer.
package handler

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/typing-flair/internal/apperror"
	"github.com/sakif/typing-flair/internal/auth"
	"github.com/sakif/typing-flair/internal/model"
	"github.com/sakif/typing-flair/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

// maxJSONBody caps /api request bodies. A flair is at most 64 characters.
const maxJSONBody = 4 << 10

// AccountHandler serves the home page and everything a logged-in user can
// do: store an Ape Key, see flair choices, pick a flair.
type AccountHandler struct {
	templates *template.Template
	accounts  *service.AccountService
	stats     *service.StatsService
	flair     *service.FlairService
	subreddit string
	logger    *slog.Logger
}

// NewAccountHandler parses the embedded templates once and returns the handler.
//
// TEMPLATE COMPOSITION:
// base.html defines the page shell with a {{template "content" .}}
// placeholder; home.html fills it with {{define "content"}}.
func NewAccountHandler(
	accounts *service.AccountService,
	stats *service.StatsService,
	flair *service.FlairService,
	subreddit string,
	logger *slog.Logger,
) (*AccountHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/base.html", "templates/home.html")
	if err != nil {
		return nil, err
	}

	return &AccountHandler{
		templates: tmpl,
		accounts:  accounts,
		stats:     stats,
		flair:     flair,
		subreddit: subreddit,
		logger:    logger,
	}, nil
}

// homeData is everything home.html can show. The templates only render
// these values; they never decide anything.
type homeData struct {
	Title        string
	Subreddit    string
	User         *model.User
	MaskedApeKey string
	ApeKeyError  string
	Stats        service.StatsResult
	Choices      []service.FlairChoice
	Flair        *service.FlairResult
}

// HandleHome renders the home page.
//
// HTTP: GET /
// Auth: optional. Anonymous visitors get the login link.
func (h *AccountHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	data := h.baseData(r)
	if data.User != nil {
		h.loadAccount(r, data)
	}
	h.render(w, http.StatusOK, data)
}

// HandleSetApeKey stores the submitted Ape Key.
//
// HTTP: POST /apekey (form field ape_key)
// Auth: Required
//
// Success redirects to / (post/redirect/get). A blank key re-renders the
// page with the error next to the form.
func (h *AccountHandler) HandleSetApeKey(w http.ResponseWriter, r *http.Request) {
	us, _ := auth.UserSessionFromContext(r.Context())

	err := h.accounts.SetApeKey(r.Context(), us.User.ID, r.PostFormValue("ape_key"))
	if err != nil {
		data := h.baseData(r)
		h.loadAccount(r, data)

		status := http.StatusInternalServerError
		data.ApeKeyError = "Failed to execute query"
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && errors.Is(err, apperror.ErrValidation) {
			status = http.StatusBadRequest
			data.ApeKeyError = appErr.Message
		} else {
			h.logger.Error("storing ape key failed", slog.String("error", err.Error()))
		}

		h.render(w, status, data)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleDeleteApeKey removes the stored Ape Key.
//
// HTTP: POST /apekey/delete
// Auth: Required
func (h *AccountHandler) HandleDeleteApeKey(w http.ResponseWriter, r *http.Request) {
	us, _ := auth.UserSessionFromContext(r.Context())

	if err := h.accounts.ClearApeKey(r.Context(), us.User.ID); err != nil {
		h.logger.Error("clearing ape key failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleSetFlair sets the chosen flair and re-renders the page with the outcome.
//
// HTTP: POST /flair (form field flair-choice)
// Auth: Required
func (h *AccountHandler) HandleSetFlair(w http.ResponseWriter, r *http.Request) {
	us, _ := auth.UserSessionFromContext(r.Context())

	result := h.flair.SetFlair(r.Context(), us.User.RedditUsername, r.PostFormValue("flair-choice"))

	data := h.baseData(r)
	h.loadAccount(r, data)
	data.Flair = &result
	h.render(w, http.StatusOK, data)
}

// meResponse is the /api/me payload. The Ape Key itself never leaves the
// server; the frontend only learns whether one is stored.
type meResponse struct {
	*model.User
	HasApeKey bool `json:"hasApeKey"`
}

// HandleMe returns the currently logged-in user.
//
// HTTP: GET /api/me
// Auth: Required
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	us, _ := auth.UserSessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, meResponse{User: us.User, HasApeKey: us.User.HasApeKey()})
}

// statsResponse is the /api/stats payload.
type statsResponse struct {
	service.StatsResult
	Choices []service.FlairChoice `json:"choices"`
}

// HandleStats returns the user's personal bests and the flairs built from them.
//
// HTTP: GET /api/stats
// Auth: Required
//
// Upstream failures are part of the body ("error"), not the status code:
// the request itself succeeded.
func (h *AccountHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	us, _ := auth.UserSessionFromContext(r.Context())

	key, err := h.accounts.ApeKey(r.Context(), us.User.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	result := h.stats.FetchStats(r.Context(), key)
	writeJSON(w, http.StatusOK, statsResponse{
		StatsResult: result,
		Choices:     service.FlairChoices(result.Stats),
	})
}

type flairRequest struct {
	Flair string `json:"flair"`
}

// HandleAPIFlair sets the user's flair.
//
// HTTP: POST /api/flair  {"flair": "60s :: 120wpm :: 98% acc :: Jan 02, 2024"}
// Auth: Required
//
// The body is the FlairResult; any failure answers 400.
func (h *AccountHandler) HandleAPIFlair(w http.ResponseWriter, r *http.Request) {
	us, _ := auth.UserSessionFromContext(r.Context())

	var req flairRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("flair", "Request body must be JSON like {\"flair\": \"...\"}"))
		return
	}

	result := h.flair.SetFlair(r.Context(), us.User.RedditUsername, req.Flair)
	status := http.StatusOK
	if result.Failed() {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, result)
}

func (h *AccountHandler) baseData(r *http.Request) *homeData {
	data := &homeData{
		Title:     "r/" + h.subreddit + " MonkeyType flair",
		Subreddit: h.subreddit,
	}
	if us, ok := auth.UserSessionFromContext(r.Context()); ok {
		data.User = us.User
	}
	return data
}

// loadAccount fills in the Ape Key and stats sections for a logged-in user.
func (h *AccountHandler) loadAccount(r *http.Request, data *homeData) {
	key, err := h.accounts.ApeKey(r.Context(), data.User.ID)
	if err != nil {
		h.logger.Error("loading ape key failed", slog.String("error", err.Error()))
		data.Stats = service.StatsResult{Error: "Failed to load your Ape Key"}
		return
	}

	data.MaskedApeKey = maskKey(key)
	data.Stats = h.stats.FetchStats(r.Context(), key)
	data.Choices = service.FlairChoices(data.Stats.Stats)
}

func (h *AccountHandler) render(w http.ResponseWriter, status int, data *homeData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.ExecuteTemplate(w, "base", data); err != nil {
		// Headers are already sent; all we can do is log.
		h.logger.Error("failed to render template", slog.String("error", err.Error()))
	}
}

// maskKey shows only the last four characters of a key.
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	runes := []rune(key)
	if len(runes) <= 4 {
		return strings.Repeat("•", 8)
	}
	return strings.Repeat("•", 8) + string(runes[len(runes)-4:])
}
