// Package mcp exposes the ludics engine as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/ludics"
	"github.com/aretw0/ludics/internal/moves"
	"github.com/aretw0/ludics/pkg/domain"
)

// Engine defines the operations the MCP server calls.
type Engine interface {
	EnsureLocus(ctx context.Context, dialogueID, path string) (*domain.Locus, error)
	ListLoci(ctx context.Context, dialogueID string) ([]domain.Locus, error)
	CreateDesign(ctx context.Context, d *domain.Design) (*domain.Design, error)
	GetDesign(ctx context.Context, id string) (*domain.Design, error)
	ListDesigns(ctx context.Context, dialogueID string) ([]string, error)
	AppendAct(ctx context.Context, designID string, act domain.Act) (*domain.Design, error)
	CloneSubtree(ctx context.Context, designID, from, to string) (*domain.CloneResult, error)
	StepByID(ctx context.Context, aID, bID string) (*domain.Interaction, error)
	DispByID(ctx context.Context, designID string, counterIDs ...string) (*domain.DisputeSet, error)
	ComputePlays(ctx context.Context, views []domain.View) (*ludics.PlaysResult, error)
	StrategyByID(ctx context.Context, designID string, counterIDs ...string) (*domain.Strategy, *domain.DisputeSet, error)
	CheckByID(ctx context.Context, designID string, counterIDs ...string) (ludics.CheckReport, error)
	RoundTripByID(ctx context.Context, designID string, counterIDs ...string) (*ludics.DesignRoundTrip, error)
	OpenDialogue(ctx context.Context, dialogueID string) (*ludics.Dialogue, error)
	ApplyMove(ctx context.Context, dl *ludics.Dialogue, m ludics.Move) (*ludics.MoveStep, error)
	BehaviourByID(ctx context.Context, dialogueID string, designIDs ...string) (*ludics.BehaviourClosure, error)
	IncarnationByID(ctx context.Context, designID string, counterIDs ...string) (*ludics.DesignIncarnation, error)
}

var _ Engine = (*ludics.Engine)(nil)

// StrategyResponse pairs a strategy with the disputes it was read from.
type StrategyResponse struct {
	Strategy *domain.Strategy   `json:"strategy" jsonschema_description:"The innocent strategy of the design"`
	Disputes *domain.DisputeSet `json:"disputes" jsonschema_description:"The disputes the plays were taken from"`
}

// MoveResponse reports one applied dialogue move.
type MoveResponse struct {
	Step   *ludics.MoveStep `json:"step" jsonschema_description:"The acts the move compiled to"`
	Closed bool             `json:"closed" jsonschema_description:"Whether the dialogue is closed"`
}

// Server wraps the ludics Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
	logger    *slog.Logger

	mu        sync.Mutex
	dialogues map[string]*ludics.Dialogue
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:    engine,
		logger:    logger,
		dialogues: map[string]*ludics.Dialogue{},
		mcpServer: server.NewMCPServer("ludics-mcp", strings.TrimSpace(ludics.Version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	baseURL := "http://localhost" + addr
	if !strings.HasPrefix(addr, ":") {
		baseURL = "http://" + addr
	}
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("MCP Server shutting down")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

var counterItems = mcp.Items(map[string]any{"type": "string"})

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("ensure_locus",
		mcp.WithDescription("Create a locus and its ancestors within a dialogue."),
		mcp.WithString("dialogue_id", mcp.Required(), mcp.Description("Dialogue the locus belongs to")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Dotted address such as 0.1.2")),
		mcp.WithOutputSchema[domain.Locus](),
	), mcp.NewStructuredToolHandler(s.handleEnsureLocus))

	s.mcpServer.AddTool(mcp.NewTool("create_design",
		mcp.WithDescription("Create an empty design for one participant of a dialogue."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Design ID")),
		mcp.WithString("dialogue_id", mcp.Required(), mcp.Description("Dialogue ID")),
		mcp.WithString("participant_id", mcp.Description("Participant owning the design")),
		mcp.WithString("polarity", mcp.Required(), mcp.Enum("P", "O"), mcp.Description("P for proponent, O for opponent")),
		mcp.WithOutputSchema[domain.Design](),
	), mcp.NewStructuredToolHandler(s.handleCreateDesign))

	s.mcpServer.AddTool(mcp.NewTool("append_act",
		mcp.WithDescription("Append an act to a design's chronicle."),
		mcp.WithString("design_id", mcp.Required(), mcp.Description("Design ID")),
		mcp.WithString("locus", mcp.Description("Locus the act is played at; empty means the root")),
		mcp.WithString("expression", mcp.Description("Free-form payload of the act")),
		mcp.WithArray("ramification", counterItems, mcp.Description("Sub-locus names the act opens")),
		mcp.WithBoolean("daimon", mcp.Description("Play the daimon instead of a proper act")),
		mcp.WithOutputSchema[domain.Design](),
	), mcp.NewStructuredToolHandler(s.handleAppendAct))

	s.mcpServer.AddTool(mcp.NewTool("clone_subtree",
		mcp.WithDescription("Copy the acts under one locus of a design to another locus."),
		mcp.WithString("design_id", mcp.Required(), mcp.Description("Design ID")),
		mcp.WithString("from", mcp.Required(), mcp.Description("Source locus")),
		mcp.WithString("to", mcp.Required(), mcp.Description("Destination locus")),
		mcp.WithOutputSchema[domain.CloneResult](),
	), mcp.NewStructuredToolHandler(s.handleCloneSubtree))

	s.mcpServer.AddTool(mcp.NewTool("step_interaction",
		mcp.WithDescription("Run the interaction between two designs of opposite polarity."),
		mcp.WithString("positive_id", mcp.Required(), mcp.Description("First design ID")),
		mcp.WithString("negative_id", mcp.Required(), mcp.Description("Second design ID")),
		mcp.WithOutputSchema[domain.Interaction](),
	), mcp.NewStructuredToolHandler(s.handleStep))

	s.mcpServer.AddTool(mcp.NewTool("compute_disp",
		mcp.WithDescription("Compute the disputes of a design against its counter-designs."),
		mcp.WithString("design_id", mcp.Required(), mcp.Description("Design ID")),
		mcp.WithArray("counters", counterItems, mcp.Description("Counter-design IDs; defaults to every counter in the dialogue")),
		mcp.WithOutputSchema[domain.DisputeSet](),
	), mcp.NewStructuredToolHandler(s.handleDisp))

	s.mcpServer.AddTool(mcp.NewTool("design_to_strategy",
		mcp.WithDescription("Read the innocent strategy of a design off its disputes."),
		mcp.WithString("design_id", mcp.Required(), mcp.Description("Design ID")),
		mcp.WithArray("counters", counterItems, mcp.Description("Counter-design IDs")),
		mcp.WithOutputSchema[StrategyResponse](),
	), mcp.NewStructuredToolHandler(s.handleStrategy))

	s.mcpServer.AddTool(mcp.NewTool("compute_plays",
		mcp.WithDescription("Close a set of views into the smallest innocent strategy."),
		mcp.WithString("views", mcp.Required(), mcp.Description("JSON array of views")),
		mcp.WithOutputSchema[ludics.PlaysResult](),
	), mcp.NewStructuredToolHandler(s.handlePlays))

	s.mcpServer.AddTool(mcp.NewTool("check_isomorphisms",
		mcp.WithDescription("Check the views, plays, disputes and chronicles correspondences for a design."),
		mcp.WithString("design_id", mcp.Required(), mcp.Description("Design ID")),
		mcp.WithArray("counters", counterItems, mcp.Description("Counter-design IDs")),
		mcp.WithOutputSchema[ludics.CheckReport](),
	), mcp.NewStructuredToolHandler(s.handleCheck))

	s.mcpServer.AddTool(mcp.NewTool("roundtrip_design",
		mcp.WithDescription("Convert a design to its strategy and back, reporting lost or extra acts."),
		mcp.WithString("design_id", mcp.Required(), mcp.Description("Design ID")),
		mcp.WithArray("counters", counterItems, mcp.Description("Counter-design IDs")),
		mcp.WithOutputSchema[ludics.DesignRoundTrip](),
	), mcp.NewStructuredToolHandler(s.handleRoundTrip))

	s.mcpServer.AddTool(mcp.NewTool("behaviour_closure",
		mcp.WithDescription("Close designs of one polarity under biorthogonality within their dialogue."),
		mcp.WithString("dialogue_id", mcp.Required(), mcp.Description("Dialogue ID")),
		mcp.WithArray("designs", counterItems, mcp.Required(), mcp.Description("Design IDs of the set")),
		mcp.WithOutputSchema[ludics.BehaviourClosure](),
	), mcp.NewStructuredToolHandler(s.handleBehaviour))

	s.mcpServer.AddTool(mcp.NewTool("design_incarnation",
		mcp.WithDescription("Keep the part of a design its orthogonal counter-designs visit."),
		mcp.WithString("design_id", mcp.Required(), mcp.Description("Design ID")),
		mcp.WithArray("counters", counterItems, mcp.Description("Counter-design IDs")),
		mcp.WithOutputSchema[ludics.DesignIncarnation](),
	), mcp.NewStructuredToolHandler(s.handleIncarnation))

	s.mcpServer.AddTool(mcp.NewTool("apply_move",
		mcp.WithDescription("Play a dialogue move (ASSERT, WHY, GROUNDS, CONCEDE, RETRACT, CLOSE)."),
		mcp.WithString("dialogue_id", mcp.Required(), mcp.Description("Dialogue ID")),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Move kind, any case")),
		mcp.WithString("actor", mcp.Enum("P", "O"), mcp.Description("Overrides the default mover of the kind")),
		mcp.WithString("locus", mcp.Description("Locus to play at")),
		mcp.WithString("target", mcp.Description("Locus the move answers")),
		mcp.WithString("expression", mcp.Description("Claim or question text")),
		mcp.WithArray("ramification", counterItems, mcp.Description("Sub-loci opened by the move")),
		mcp.WithOutputSchema[MoveResponse](),
	), mcp.NewStructuredToolHandler(s.handleMove))

	s.mcpServer.AddTool(mcp.NewTool("list_designs",
		mcp.WithDescription("List the design IDs of a dialogue."),
		mcp.WithString("dialogue_id", mcp.Required(), mcp.Description("Dialogue ID")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := s.engine.ListDesigns(ctx, request.GetString("dialogue_id", ""))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list designs failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(ids)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("list_loci",
		mcp.WithDescription("List the loci created within a dialogue."),
		mcp.WithString("dialogue_id", mcp.Required(), mcp.Description("Dialogue ID")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		loci, err := s.engine.ListLoci(ctx, request.GetString("dialogue_id", ""))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list loci failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(loci)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

// Tool arguments, decoded with mapstructure.

type locusArgs struct {
	DialogueID string `mapstructure:"dialogue_id"`
	Path       string `mapstructure:"path"`
}

type designArgs struct {
	ID            string `mapstructure:"id"`
	DialogueID    string `mapstructure:"dialogue_id"`
	ParticipantID string `mapstructure:"participant_id"`
	Polarity      string `mapstructure:"polarity"`
}

type actArgs struct {
	DesignID     string   `mapstructure:"design_id"`
	Locus        string   `mapstructure:"locus"`
	Expression   string   `mapstructure:"expression"`
	Ramification []string `mapstructure:"ramification"`
	Daimon       bool     `mapstructure:"daimon"`
}

type cloneArgs struct {
	DesignID string `mapstructure:"design_id"`
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`
}

type stepArgs struct {
	PositiveID string `mapstructure:"positive_id"`
	NegativeID string `mapstructure:"negative_id"`
}

type counterArgs struct {
	DesignID string   `mapstructure:"design_id"`
	Counters []string `mapstructure:"counters"`
}

type behaviourArgs struct {
	DialogueID string   `mapstructure:"dialogue_id"`
	Designs    []string `mapstructure:"designs"`
}

type moveArgs struct {
	moves.Move `mapstructure:",squash"`

	DialogueID string `mapstructure:"dialogue_id"`
}

func decodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func (s *Server) handleEnsureLocus(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (*domain.Locus, error) {
	var a locusArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return s.engine.EnsureLocus(ctx, a.DialogueID, a.Path)
}

func (s *Server) handleCreateDesign(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (*domain.Design, error) {
	var a designArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	pol := domain.Polarity(strings.ToUpper(a.Polarity))
	if !pol.Valid() {
		return nil, fmt.Errorf("invalid polarity %q", a.Polarity)
	}
	return s.engine.CreateDesign(ctx, domain.NewDesign(a.ID, a.DialogueID, a.ParticipantID, pol))
}

func (s *Server) handleAppendAct(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (*domain.Design, error) {
	var a actArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	d, err := s.engine.GetDesign(ctx, a.DesignID)
	if err != nil {
		return nil, err
	}
	act := domain.Act{
		Kind:         domain.KindProper,
		Polarity:     d.Polarity,
		LocusPath:    a.Locus,
		Expression:   a.Expression,
		Ramification: a.Ramification,
	}
	if a.Daimon {
		act.Kind = domain.KindDaimon
	}
	return s.engine.AppendAct(ctx, a.DesignID, act)
}

func (s *Server) handleCloneSubtree(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (*domain.CloneResult, error) {
	var a cloneArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return s.engine.CloneSubtree(ctx, a.DesignID, a.From, a.To)
}

func (s *Server) handleStep(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (*domain.Interaction, error) {
	var a stepArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return s.engine.StepByID(ctx, a.PositiveID, a.NegativeID)
}

func (s *Server) handleDisp(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (*domain.DisputeSet, error) {
	var a counterArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return s.engine.DispByID(ctx, a.DesignID, a.Counters...)
}

func (s *Server) handleStrategy(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (StrategyResponse, error) {
	var a counterArgs
	if err := decodeArgs(args, &a); err != nil {
		return StrategyResponse{}, err
	}
	st, set, err := s.engine.StrategyByID(ctx, a.DesignID, a.Counters...)
	if err != nil {
		return StrategyResponse{}, err
	}
	return StrategyResponse{Strategy: st, Disputes: set}, nil
}

func (s *Server) handlePlays(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (*ludics.PlaysResult, error) {
	raw, _ := args["views"].(string)
	var views []domain.View
	if err := json.Unmarshal([]byte(raw), &views); err != nil {
		return nil, fmt.Errorf("invalid views: %w", err)
	}
	return s.engine.ComputePlays(ctx, views)
}

func (s *Server) handleCheck(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (ludics.CheckReport, error) {
	var a counterArgs
	if err := decodeArgs(args, &a); err != nil {
		return ludics.CheckReport{}, err
	}
	return s.engine.CheckByID(ctx, a.DesignID, a.Counters...)
}

func (s *Server) handleRoundTrip(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (*ludics.DesignRoundTrip, error) {
	var a counterArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return s.engine.RoundTripByID(ctx, a.DesignID, a.Counters...)
}

func (s *Server) handleBehaviour(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (*ludics.BehaviourClosure, error) {
	var a behaviourArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return s.engine.BehaviourByID(ctx, a.DialogueID, a.Designs...)
}

func (s *Server) handleIncarnation(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (*ludics.DesignIncarnation, error) {
	var a counterArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return s.engine.IncarnationByID(ctx, a.DesignID, a.Counters...)
}

func (s *Server) handleMove(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (MoveResponse, error) {
	var a moveArgs
	if err := decodeArgs(args, &a); err != nil {
		return MoveResponse{}, err
	}
	kind, err := moves.ParseKind(string(a.Kind))
	if err != nil {
		return MoveResponse{}, err
	}
	a.Kind = kind

	s.mu.Lock()
	defer s.mu.Unlock()
	dl, ok := s.dialogues[a.DialogueID]
	if !ok {
		if dl, err = s.engine.OpenDialogue(ctx, a.DialogueID); err != nil {
			return MoveResponse{}, err
		}
		s.dialogues[a.DialogueID] = dl
	}
	step, err := s.engine.ApplyMove(ctx, dl, a.Move)
	if err != nil {
		s.logger.Debug("MCP move rejected", "dialogue_id", a.DialogueID, "kind", a.Kind, "err", err)
		return MoveResponse{}, err
	}
	return MoveResponse{Step: step, Closed: dl.Closed}, nil
}

const designURIPrefix = "ludics://designs/"

func (s *Server) registerResources() {
	// EXPOSE: ludics://designs/{id}
	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(designURIPrefix+"{id}", "Design",
		mcp.WithTemplateDescription("A stored design with its chronicle of acts"),
		mcp.WithTemplateMIMEType("application/json"),
	), s.readDesign)
}

func (s *Server) readDesign(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	id := strings.TrimPrefix(uri, designURIPrefix)
	if id == "" || id == uri {
		return nil, fmt.Errorf("invalid design uri %q", uri)
	}
	d, err := s.engine.GetDesign(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read design: %w", err)
	}
	jsonBytes, _ := json.Marshal(d)

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
