// Package http exposes the ludics engine as a JSON API over chi.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/aretw0/ludics"
	"github.com/aretw0/ludics/internal/moves"
	"github.com/aretw0/ludics/pkg/domain"
)

// Engine defines the operations the HTTP API serves.
type Engine interface {
	EnsureLocus(ctx context.Context, dialogueID, path string) (*domain.Locus, error)
	ListLoci(ctx context.Context, dialogueID string) ([]domain.Locus, error)
	CreateDesign(ctx context.Context, d *domain.Design) (*domain.Design, error)
	GetDesign(ctx context.Context, id string) (*domain.Design, error)
	ListDesigns(ctx context.Context, dialogueID string) ([]string, error)
	DeleteDesign(ctx context.Context, id string) error
	AppendAct(ctx context.Context, designID string, act domain.Act) (*domain.Design, error)
	CloneSubtree(ctx context.Context, designID, from, to string) (*domain.CloneResult, error)
	StepByID(ctx context.Context, aID, bID string) (*domain.Interaction, error)
	DispByID(ctx context.Context, designID string, counterIDs ...string) (*domain.DisputeSet, error)
	ComputePlays(ctx context.Context, views []domain.View) (*ludics.PlaysResult, error)
	StrategyByID(ctx context.Context, designID string, counterIDs ...string) (*domain.Strategy, *domain.DisputeSet, error)
	StrategyToDesign(ctx context.Context, s *domain.Strategy, origin *domain.Design) (*domain.Design, error)
	CheckByID(ctx context.Context, designID string, counterIDs ...string) (ludics.CheckReport, error)
	RoundTripByID(ctx context.Context, designID string, counterIDs ...string) (*ludics.DesignRoundTrip, error)
	RoundTripStrategy(ctx context.Context, s *domain.Strategy, counters []*domain.Design) (*ludics.StrategyRoundTrip, error)
	OpenDialogue(ctx context.Context, dialogueID string) (*ludics.Dialogue, error)
	ApplyMove(ctx context.Context, dl *ludics.Dialogue, m ludics.Move) (*ludics.MoveStep, error)
	BehaviourByID(ctx context.Context, dialogueID string, designIDs ...string) (*ludics.BehaviourClosure, error)
	IncarnationByID(ctx context.Context, designID string, counterIDs ...string) (*ludics.DesignIncarnation, error)
}

var _ Engine = (*ludics.Engine)(nil)

// Server serves the Engine.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	logger   *slog.Logger
	validate *validator.Validate
	metrics  http.Handler

	mu        sync.Mutex
	dialogues map[string]*ludics.Dialogue
}

// Option configures the Server.
type Option func(*Server)

// WithStreams shares a StreamManager whose hooks are registered on the engine.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine:    engine,
		logger:    slog.New(slog.NewJSONHandler(io.Discard, nil)),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		dialogues: map[string]*ludics.Dialogue{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager()
	}
	return enableCORS(s.routes())
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/events", s.SubscribeEvents)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Post("/loci", s.EnsureLocus)
	r.Get("/dialogues/{dialogueID}/loci", s.ListLoci)
	r.Post("/dialogues/{dialogueID}/moves", s.ApplyMove)
	r.Get("/dialogues/{dialogueID}/behaviour", s.Behaviour)

	r.Route("/designs", func(r chi.Router) {
		r.Get("/", s.ListDesigns)
		r.Post("/", s.CreateDesign)
		r.Route("/{designID}", func(r chi.Router) {
			r.Get("/", s.GetDesign)
			r.Delete("/", s.DeleteDesign)
			r.Post("/acts", s.AppendAct)
			r.Post("/clone", s.CloneSubtree)
			r.Get("/disp", s.ComputeDisp)
			r.Get("/strategy", s.DesignToStrategy)
			r.Get("/check", s.CheckIsomorphisms)
			r.Get("/roundtrip", s.RoundTripDesign)
			r.Get("/incarnation", s.IncarnateDesign)
		})
	})

	r.Post("/interactions", s.StepInteraction)
	r.Post("/plays", s.ComputePlays)
	r.Post("/strategies/design", s.StrategyToDesign)
	r.Post("/strategies/roundtrip", s.RoundTripStrategy)
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Request bodies.

type locusRequest struct {
	DialogueID string `json:"dialogue_id" validate:"required"`
	Path       string `json:"path"`
}

type cloneRequest struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
}

type interactionRequest struct {
	PositiveID string `json:"positive_id" validate:"required"`
	NegativeID string `json:"negative_id" validate:"required,nefield=PositiveID"`
}

type playsRequest struct {
	Views []domain.View `json:"views"`
}

type strategyRequest struct {
	Strategy *domain.Strategy `json:"strategy" validate:"required"`
	Origin   *domain.Design   `json:"origin,omitempty"`
	// CounterIDs name stored counter-designs for the strategy round trip.
	CounterIDs []string `json:"counter_ids,omitempty"`
}

// decode reads a JSON body into v and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.fail(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		var invalid *validator.InvalidValidationError
		if !errors.As(err, &invalid) {
			s.fail(w, r, http.StatusBadRequest, err)
			return false
		}
	}
	return true
}

// Handlers.

// EnsureLocus handles POST /loci.
func (s *Server) EnsureLocus(w http.ResponseWriter, r *http.Request) {
	var body locusRequest
	if !s.decode(w, r, &body) {
		return
	}
	l, err := s.Engine.EnsureLocus(r.Context(), body.DialogueID, body.Path)
	s.respond(w, r, http.StatusOK, l, err)
}

// ListLoci handles GET /dialogues/{dialogueID}/loci.
func (s *Server) ListLoci(w http.ResponseWriter, r *http.Request) {
	loci, err := s.Engine.ListLoci(r.Context(), chi.URLParam(r, "dialogueID"))
	s.respond(w, r, http.StatusOK, loci, err)
}

// ListDesigns handles GET /designs?dialogue_id=.
func (s *Server) ListDesigns(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.ListDesigns(r.Context(), r.URL.Query().Get("dialogue_id"))
	s.respond(w, r, http.StatusOK, ids, err)
}

// CreateDesign handles POST /designs.
func (s *Server) CreateDesign(w http.ResponseWriter, r *http.Request) {
	var body domain.Design
	if !s.decode(w, r, &body) {
		return
	}
	if body.ID == "" {
		s.fail(w, r, http.StatusBadRequest, errors.New("design id is required"))
		return
	}
	d, err := s.Engine.CreateDesign(r.Context(), &body)
	s.respond(w, r, http.StatusCreated, d, err)
}

// GetDesign handles GET /designs/{designID}.
func (s *Server) GetDesign(w http.ResponseWriter, r *http.Request) {
	d, err := s.Engine.GetDesign(r.Context(), chi.URLParam(r, "designID"))
	s.respond(w, r, http.StatusOK, d, err)
}

// DeleteDesign handles DELETE /designs/{designID}.
func (s *Server) DeleteDesign(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.DeleteDesign(r.Context(), chi.URLParam(r, "designID")); err != nil {
		s.respond(w, r, 0, nil, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AppendAct handles POST /designs/{designID}/acts.
func (s *Server) AppendAct(w http.ResponseWriter, r *http.Request) {
	var body domain.Act
	if !s.decode(w, r, &body) {
		return
	}
	d, err := s.Engine.AppendAct(r.Context(), chi.URLParam(r, "designID"), body)
	s.respond(w, r, http.StatusOK, d, err)
}

// CloneSubtree handles POST /designs/{designID}/clone.
func (s *Server) CloneSubtree(w http.ResponseWriter, r *http.Request) {
	var body cloneRequest
	if !s.decode(w, r, &body) {
		return
	}
	res, err := s.Engine.CloneSubtree(r.Context(), chi.URLParam(r, "designID"), body.From, body.To)
	s.respond(w, r, http.StatusOK, res, err)
}

// StepInteraction handles POST /interactions.
func (s *Server) StepInteraction(w http.ResponseWriter, r *http.Request) {
	var body interactionRequest
	if !s.decode(w, r, &body) {
		return
	}
	res, err := s.Engine.StepByID(r.Context(), body.PositiveID, body.NegativeID)
	s.respond(w, r, http.StatusOK, res, err)
}

// ComputeDisp handles GET /designs/{designID}/disp?counter=.
func (s *Server) ComputeDisp(w http.ResponseWriter, r *http.Request) {
	set, err := s.Engine.DispByID(r.Context(), chi.URLParam(r, "designID"), counters(r)...)
	s.respond(w, r, http.StatusOK, set, err)
}

// ComputePlays handles POST /plays.
func (s *Server) ComputePlays(w http.ResponseWriter, r *http.Request) {
	var body playsRequest
	if !s.decode(w, r, &body) {
		return
	}
	res, err := s.Engine.ComputePlays(r.Context(), body.Views)
	s.respond(w, r, http.StatusOK, res, err)
}

// DesignToStrategy handles GET /designs/{designID}/strategy?counter=.
func (s *Server) DesignToStrategy(w http.ResponseWriter, r *http.Request) {
	st, set, err := s.Engine.StrategyByID(r.Context(), chi.URLParam(r, "designID"), counters(r)...)
	s.respond(w, r, http.StatusOK, map[string]any{"strategy": st, "disputes": set}, err)
}

// StrategyToDesign handles POST /strategies/design.
func (s *Server) StrategyToDesign(w http.ResponseWriter, r *http.Request) {
	var body strategyRequest
	if !s.decode(w, r, &body) {
		return
	}
	d, err := s.Engine.StrategyToDesign(r.Context(), body.Strategy, body.Origin)
	s.respond(w, r, http.StatusOK, d, err)
}

// CheckIsomorphisms handles GET /designs/{designID}/check?counter=.
func (s *Server) CheckIsomorphisms(w http.ResponseWriter, r *http.Request) {
	rep, err := s.Engine.CheckByID(r.Context(), chi.URLParam(r, "designID"), counters(r)...)
	s.respond(w, r, http.StatusOK, rep, err)
}

// RoundTripDesign handles GET /designs/{designID}/roundtrip?counter=.
func (s *Server) RoundTripDesign(w http.ResponseWriter, r *http.Request) {
	rt, err := s.Engine.RoundTripByID(r.Context(), chi.URLParam(r, "designID"), counters(r)...)
	s.respond(w, r, http.StatusOK, rt, err)
}

// RoundTripStrategy handles POST /strategies/roundtrip.
func (s *Server) RoundTripStrategy(w http.ResponseWriter, r *http.Request) {
	var body strategyRequest
	if !s.decode(w, r, &body) {
		return
	}
	var cs []*domain.Design
	for _, id := range body.CounterIDs {
		c, err := s.Engine.GetDesign(r.Context(), id)
		if err != nil {
			s.respond(w, r, 0, nil, err)
			return
		}
		cs = append(cs, c)
	}
	rt, err := s.Engine.RoundTripStrategy(r.Context(), body.Strategy, cs)
	s.respond(w, r, http.StatusOK, rt, err)
}

// Behaviour handles GET /dialogues/{dialogueID}/behaviour?design=.
func (s *Server) Behaviour(w http.ResponseWriter, r *http.Request) {
	c, err := s.Engine.BehaviourByID(r.Context(), chi.URLParam(r, "dialogueID"), r.URL.Query()["design"]...)
	s.respond(w, r, http.StatusOK, c, err)
}

// IncarnateDesign handles GET /designs/{designID}/incarnation?counter=.
func (s *Server) IncarnateDesign(w http.ResponseWriter, r *http.Request) {
	inc, err := s.Engine.IncarnationByID(r.Context(), chi.URLParam(r, "designID"), counters(r)...)
	s.respond(w, r, http.StatusOK, inc, err)
}

// ApplyMove handles POST /dialogues/{dialogueID}/moves. Open dialogues are
// kept by the server so a CLOSE holds for later requests.
func (s *Server) ApplyMove(w http.ResponseWriter, r *http.Request) {
	var body ludics.Move
	if !s.decode(w, r, &body) {
		return
	}
	kind, err := moves.ParseKind(string(body.Kind))
	if err != nil {
		s.respond(w, r, 0, nil, err)
		return
	}
	body.Kind = kind
	id := chi.URLParam(r, "dialogueID")

	s.mu.Lock()
	defer s.mu.Unlock()
	dl, ok := s.dialogues[id]
	if !ok {
		if dl, err = s.Engine.OpenDialogue(r.Context(), id); err != nil {
			s.respond(w, r, 0, nil, err)
			return
		}
		s.dialogues[id] = dl
	}
	step, err := s.Engine.ApplyMove(r.Context(), dl, body)
	s.respond(w, r, http.StatusOK, map[string]any{"step": step, "closed": dl.Closed}, err)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, map[string]string{"status": "ok"}, nil)
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, map[string]string{
		"app":     "ludics-http",
		"version": strings.TrimSpace(ludics.Version),
	}, nil)
}

// -- Helpers --

func counters(r *http.Request) []string {
	return r.URL.Query()["counter"]
}

// StatusFor maps engine errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNoSuchDesign), errors.Is(err, domain.ErrNoSuchLocus):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDesignExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrMalformedChronicle), errors.Is(err, domain.ErrIllegalMove),
		errors.Is(err, domain.ErrEnsureLocusFailed), errors.Is(err, domain.ErrPolarityMismatch),
		errors.Is(err, domain.ErrDialogueClosed), errors.Is(err, domain.ErrMixedPlayers):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, code int, v any, err error) {
	if err != nil {
		s.fail(w, r, StatusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "path", r.URL.Path, "err", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, code int, err error) {
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", code, "err", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
