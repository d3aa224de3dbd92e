package main

import (
	"net/http"
	"time"

	"github.com/AdamBeresnev/op-arena/internal/bracket"
	"github.com/AdamBeresnev/op-arena/internal/httputil"
	"github.com/AdamBeresnev/op-arena/internal/middleware"
	"github.com/AdamBeresnev/op-arena/internal/service"
	users "github.com/AdamBeresnev/op-arena/internal/user"
	"github.com/bytedance/sonic"
	crerrors "github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type handlers struct {
	tournaments   *service.TournamentService
	registrations *service.RegistrationService
	entries       *service.EntryService
	brackets      *service.BracketService
	validator     *validator.Validate
}

type createTournamentRequest struct {
	Name                 string     `json:"name" validate:"required,max=100"`
	GameID               string     `json:"game_id" validate:"required,uuid"`
	TeamSize             int        `json:"team_size" validate:"omitempty,min=1"`
	MaxTeams             int        `json:"max_teams" validate:"required,min=1"`
	RegistrationDeadline *time.Time `json:"registration_deadline"`
	SeedingMethod        string     `json:"seeding_method" validate:"omitempty,oneof=SEQUENTIAL STANDARD RANDOM"`
	RequireRank          bool       `json:"require_rank"`
	Type                 string     `json:"type" validate:"omitempty,oneof=SINGLE_ELIMINATION DOUBLE_ELIMINATION"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=REGISTRATION IN_PROGRESS COMPLETED CANCELLED"`
}

// An empty user_id on a SOLO registration means the requester.
type registerRequest struct {
	Kind      string   `json:"kind" validate:"required,oneof=SOLO TEAM"`
	UserID    string   `json:"user_id" validate:"omitempty,uuid"`
	TeamID    string   `json:"team_id" validate:"omitempty,uuid"`
	MemberIDs []string `json:"member_ids" validate:"omitempty,dive,uuid"`
}

func newRouter(h *handlers, auth middleware.IdentityProvider, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.NotFound(r.Context(), w, "No route for "+r.Method+" "+r.URL.Path, nil)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteData(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(auth))

		r.Get("/tournaments", h.listTournaments)
		r.Post("/tournaments", h.createTournament)

		r.Route("/tournaments/{id}", func(r chi.Router) {
			r.Get("/", h.getTournament)
			r.Patch("/status", h.updateStatus)
			r.Delete("/", h.deleteTournament)

			r.Get("/entries", h.listEntries)
			r.Post("/entries", h.register)
			r.Delete("/entries/{entryID}", h.revokeEntry)

			r.Get("/bracket", h.getBracket)
			r.Post("/bracket", h.buildBracket)
			r.Delete("/bracket", h.deleteBracket)
		})
	})

	return r
}

func (h *handlers) listTournaments(w http.ResponseWriter, r *http.Request) {
	requester, _ := middleware.GetIdentityFromContext(r.Context())
	tournaments, err := h.tournaments.GetTournamentsForUser(r.Context(), requester.ID)
	if err != nil {
		httputil.WriteError(r.Context(), w, err)
		return
	}
	if tournaments == nil {
		tournaments = []bracket.Tournament{}
	}
	httputil.WriteData(w, http.StatusOK, tournaments)
}

func (h *handlers) createTournament(w http.ResponseWriter, r *http.Request) {
	var req createTournamentRequest
	if !h.decode(w, r, &req) {
		return
	}

	requester, _ := middleware.GetIdentityFromContext(r.Context())
	tournament, err := h.tournaments.CreateTournament(r.Context(), requester, service.TournamentInput{
		Name:                 req.Name,
		GameID:               uuid.MustParse(req.GameID),
		TeamSize:             req.TeamSize,
		MaxTeams:             req.MaxTeams,
		RegistrationDeadline: req.RegistrationDeadline,
		SeedingMethod:        bracket.SeedingMethod(req.SeedingMethod),
		RequireRank:          req.RequireRank,
		Type:                 bracket.TournamentType(req.Type),
	})
	if err != nil {
		httputil.WriteError(r.Context(), w, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, tournament)
}

func (h *handlers) getTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	data, err := h.tournaments.GetTournamentData(r.Context(), id)
	if err != nil {
		httputil.WriteError(r.Context(), w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, data)
}

func (h *handlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	requester, _ := middleware.GetIdentityFromContext(r.Context())
	if err := h.tournaments.UpdateStatus(r.Context(), requester, id, bracket.TournamentStatus(req.Status)); err != nil {
		httputil.WriteError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) deleteTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	requester, _ := middleware.GetIdentityFromContext(r.Context())
	if err := h.tournaments.DeleteTournament(r.Context(), requester, id); err != nil {
		httputil.WriteError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) listEntries(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	entries, err := h.entries.ListEntries(r.Context(), id)
	if err != nil {
		httputil.WriteError(r.Context(), w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, entries)
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	requester, _ := middleware.GetIdentityFromContext(r.Context())
	target, err := req.target(requester)
	if err != nil {
		httputil.WriteError(r.Context(), w, err)
		return
	}

	entry, err := h.registrations.Register(r.Context(), id, requester, target)
	if err != nil {
		httputil.WriteError(r.Context(), w, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, entry)
}

func (req registerRequest) target(requester users.Identity) (service.Target, error) {
	if service.TargetKind(req.Kind) == service.TargetSolo {
		if req.UserID == "" {
			return service.SoloTarget(requester.ID), nil
		}
		return service.SoloTarget(uuid.MustParse(req.UserID)), nil
	}

	if req.TeamID == "" {
		return service.Target{}, crerrors.Wrap(service.ErrInvalidInput, "team_id is required for a TEAM registration")
	}
	members := make([]uuid.UUID, 0, len(req.MemberIDs))
	for _, m := range req.MemberIDs {
		members = append(members, uuid.MustParse(m))
	}
	return service.TeamTarget(uuid.MustParse(req.TeamID), members...), nil
}

func (h *handlers) revokeEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	entryID, ok := pathID(w, r, "entryID")
	if !ok {
		return
	}

	requester, _ := middleware.GetIdentityFromContext(r.Context())
	if err := h.entries.RevokeEntry(r.Context(), requester, id, entryID); err != nil {
		httputil.WriteError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) getBracket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	matches, err := h.brackets.GetBracket(r.Context(), id)
	if err != nil {
		httputil.WriteError(r.Context(), w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, matches)
}

// buildBracket replaces an existing bracket only when ?confirm=true is given.
func (h *handlers) buildBracket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	requester, _ := middleware.GetIdentityFromContext(r.Context())
	if _, err := h.brackets.Authorize(r.Context(), requester, id); err != nil {
		httputil.WriteError(r.Context(), w, err)
		return
	}

	exists, err := h.brackets.HasBracket(r.Context(), id)
	if err != nil {
		httputil.WriteError(r.Context(), w, err)
		return
	}
	if exists && r.URL.Query().Get("confirm") != "true" {
		httputil.WriteJSON(w, http.StatusConflict, map[string]any{"error": map[string]string{
			"kind":    "CONFIRMATION_REQUIRED",
			"message": "a bracket already exists, repeat with ?confirm=true to replace it",
		}})
		return
	}

	result, err := h.brackets.BuildBracket(r.Context(), id)
	if err != nil {
		httputil.WriteError(r.Context(), w, err)
		return
	}
	status := http.StatusCreated
	if result.Status == service.BuildStatusEmpty {
		status = http.StatusOK
	}
	httputil.WriteData(w, status, result)
}

func (h *handlers) deleteBracket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	requester, _ := middleware.GetIdentityFromContext(r.Context())
	if _, err := h.brackets.Authorize(r.Context(), requester, id); err != nil {
		httputil.WriteError(r.Context(), w, err)
		return
	}

	deleted, err := h.brackets.DeleteBracket(r.Context(), id)
	if err != nil {
		httputil.WriteError(r.Context(), w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (h *handlers) decode(w http.ResponseWriter, r *http.Request, payload any) bool {
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(payload); err != nil {
		httputil.BadRequest(r.Context(), w, "Invalid JSON body", err)
		return false
	}
	if err := h.validator.StructCtx(r.Context(), payload); err != nil {
		httputil.WriteError(r.Context(), w, crerrors.Wrap(service.ErrInvalidInput, err.Error()))
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		httputil.BadRequest(r.Context(), w, "Invalid "+param, err)
		return uuid.Nil, false
	}
	return id, true
}
