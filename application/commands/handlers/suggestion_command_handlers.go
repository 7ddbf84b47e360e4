package handlers

import (
	"context"

	"go.uber.org/zap"

	"mindboard/application/commands"
	"mindboard/application/commands/bus"
	"mindboard/application/materializer"
	"mindboard/application/ports"
	"mindboard/application/queries"
	"mindboard/application/session"
	"mindboard/domain/board"
	"mindboard/domain/events"
	"mindboard/domain/serializer"
	"mindboard/domain/suggestion"
	"mindboard/pkg/clock"
	pkgerrors "mindboard/pkg/errors"
)

// SuggestionResult is returned by the suggestion commands.
type SuggestionResult struct {
	Tree    suggestion.Tree    `json:"tree"`
	Status  suggestion.Status  `json:"status"`
	Notes   []string           `json:"notes,omitempty"`
	Applied bool               `json:"applied"`
	Nodes   []board.Node       `json:"nodes,omitempty"`
	Edges   []board.Edge       `json:"edges,omitempty"`
	Board   *queries.BoardView `json:"board,omitempty"`
}

// SuggestionCommandHandlers turns AI suggestions into board content.
type SuggestionCommandHandlers struct {
	registry     *session.Registry
	materializer *materializer.Materializer
	suggester    ports.Suggester
	events       ports.EventPublisher
	parseOpts    suggestion.ParseOptions
	clock        clock.Clock
	logger       *zap.Logger
	exclusive    func(key string, fn func() error) error
}

// NewSuggestionCommandHandlers creates the suggestion handlers. suggester
// and events may be nil.
func NewSuggestionCommandHandlers(
	registry *session.Registry,
	m *materializer.Materializer,
	suggester ports.Suggester,
	publisher ports.EventPublisher,
	parseOpts suggestion.ParseOptions,
	clk clock.Clock,
	logger *zap.Logger,
) *SuggestionCommandHandlers {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SuggestionCommandHandlers{
		registry:     registry,
		materializer: m,
		suggester:    suggester,
		events:       publisher,
		parseOpts:    parseOpts,
		clock:        clk,
		logger:       logger,
		exclusive: func(_ string, fn func() error) error {
			return fn()
		},
	}
}

// Register binds the suggestion commands to the bus
func (h *SuggestionCommandHandlers) Register(b *bus.CommandBus) error {
	h.exclusive = b.Exclusive
	if err := b.Register(commands.ApplySuggestionsCommand{}, bus.Typed(h.ApplySuggestions)); err != nil {
		return err
	}
	return b.Register(commands.GenerateSuggestionsCommand{}, bus.Typed(h.GenerateSuggestions))
}

// ApplySuggestions validates a raw payload and materialises it around the
// focal node as one undoable step
func (h *SuggestionCommandHandlers) ApplySuggestions(ctx context.Context, cmd commands.ApplySuggestionsCommand) (interface{}, error) {
	s, doc, err := h.active(cmd.SessionID)
	if err != nil {
		return nil, err
	}
	if !doc.Snapshot().HasNode(cmd.FocalID) {
		return nil, pkgerrors.NewNotFoundError("focal node").WithDetail("nodeId", cmd.FocalID)
	}

	parsed, err := suggestion.Parse(cmd.Payload, h.parseOpts)
	if err != nil {
		return nil, err
	}
	return h.apply(ctx, s, doc, cmd.FocalID, parsed)
}

// GenerateSuggestions serialises the board around the focal node, asks the
// AI collaborator and validates its answer. The tree is materialised only
// when requested.
func (h *SuggestionCommandHandlers) GenerateSuggestions(ctx context.Context, cmd commands.GenerateSuggestionsCommand) (interface{}, error) {
	if h.suggester == nil {
		return nil, pkgerrors.NewUnavailableError("suggestion provider")
	}
	var rendered string
	err := h.exclusive(cmd.SessionID, func() error {
		s, doc, err := h.active(cmd.SessionID)
		if err != nil {
			return err
		}
		s.Coordinator().Flush()
		c, err := serializer.Serialize(doc.Snapshot(), cmd.FocalID)
		if err != nil {
			return err
		}
		rendered = c.Render()
		return nil
	})
	if err != nil {
		return nil, err
	}
	message := cmd.Message
	if message == "" {
		message = suggestion.DefaultMessage
	}

	raw, err := h.suggester.Suggest(ctx, ports.SuggestRequest{
		Model:   cmd.Model,
		Message: message,
		Context: []ports.Message{
			{Role: "system", Content: suggestion.SystemPrompt},
			{Role: "system", Content: rendered},
		},
		APIKey:   cmd.APIKey,
		Provider: cmd.Provider,
	})
	if err != nil {
		if pkgerrors.IsAppError(err) {
			return nil, err
		}
		return nil, pkgerrors.NewExternalError("suggestion provider", err)
	}

	parsed, err := suggestion.Parse(raw, h.parseOpts)
	if err != nil {
		return nil, err
	}
	h.logger.Debug("Suggestions generated",
		zap.String("sessionId", cmd.SessionID),
		zap.String("focalId", cmd.FocalID),
		zap.Int("concepts", parsed.Tree.Count()),
		zap.String("status", string(parsed.Status)),
	)

	if !cmd.Apply {
		return SuggestionResult{Tree: parsed.Tree, Status: parsed.Status, Notes: parsed.Notes}, nil
	}

	// The board may have changed or closed while the provider was answering.
	var result interface{}
	err = h.exclusive(cmd.SessionID, func() error {
		s, doc, err := h.active(cmd.SessionID)
		if err != nil {
			return err
		}
		if !doc.Snapshot().HasNode(cmd.FocalID) {
			return pkgerrors.NewNotFoundError("focal node").WithDetail("nodeId", cmd.FocalID)
		}
		result, err = h.apply(ctx, s, doc, cmd.FocalID, parsed)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (h *SuggestionCommandHandlers) apply(ctx context.Context, s *session.Session, doc *board.Document, focalID string, parsed suggestion.Result) (interface{}, error) {
	s.Coordinator().Flush()
	plan, err := h.materializer.Apply(doc, focalID, parsed.Tree)
	if err != nil {
		return nil, err
	}

	if h.events != nil {
		evt := events.NewSuggestionsApplied(doc.ID(), focalID, len(plan.Nodes), parsed.Repaired(), h.clock.Now())
		if err := h.events.Publish(ctx, evt); err != nil {
			h.logger.Warn("Publishing suggestion event failed", zap.Error(err))
		}
	}

	view := queries.ViewOf(doc)
	return SuggestionResult{
		Tree:    parsed.Tree,
		Status:  parsed.Status,
		Notes:   parsed.Notes,
		Applied: true,
		Nodes:   plan.Nodes,
		Edges:   plan.Edges,
		Board:   &view,
	}, nil
}

func (h *SuggestionCommandHandlers) active(sessionID string) (*session.Session, *board.Document, error) {
	s, ok := h.registry.Lookup(sessionID)
	if !ok {
		return nil, nil, pkgerrors.NewNotFoundError("session").WithDetail("sessionId", sessionID)
	}
	doc := s.Document()
	if doc == nil {
		return nil, nil, pkgerrors.NewNotFoundError("active board")
	}
	return s, doc, nil
}
