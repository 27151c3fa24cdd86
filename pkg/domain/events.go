package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventActAppended     EventType = "act_appended"
	EventSubtreeCloned   EventType = "subtree_cloned"
	EventInteractionDone EventType = "interaction_done"
	EventDispComputed    EventType = "disp_computed"
	EventPlaysComputed   EventType = "plays_computed"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	DesignID  string    `json:"design_id,omitempty"`
}

// DesignEvent reports a mutation of a design.
type DesignEvent struct {
	EventBase
	Deliberation string `json:"deliberation_id,omitempty"`
	Locus        string `json:"locus,omitempty"`
	Acts         int    `json:"acts"`
	Version      int    `json:"version"`
}

// InteractionEvent reports a finished interaction.
type InteractionEvent struct {
	EventBase
	CounterID string `json:"counter_id"`
	Status    Status `json:"status"`
	Pairs     int    `json:"pairs"`
}

// ComputeEvent reports a finished Disp or Plays computation.
type ComputeEvent struct {
	EventBase
	Count      int  `json:"count"`
	Iterations int  `json:"iterations,omitempty"`
	Exhausted  bool `json:"exhausted,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnActAppended   func(context.Context, *DesignEvent)
	OnSubtreeCloned func(context.Context, *DesignEvent)
	OnInteraction   func(context.Context, *InteractionEvent)
	OnDisp          func(context.Context, *ComputeEvent)
	OnPlays         func(context.Context, *ComputeEvent)
}

// NewEventBase stamps an event of type t for design id.
func NewEventBase(t EventType, designID string) EventBase {
	return EventBase{Timestamp: time.Now(), Type: t, DesignID: designID}
}

// MergeHooks returns hooks calling each of hs in order.
func MergeHooks(hs ...LifecycleHooks) LifecycleHooks {
	var out LifecycleHooks
	for _, h := range hs {
		out.OnActAppended = chain(out.OnActAppended, h.OnActAppended)
		out.OnSubtreeCloned = chain(out.OnSubtreeCloned, h.OnSubtreeCloned)
		out.OnInteraction = chain(out.OnInteraction, h.OnInteraction)
		out.OnDisp = chain(out.OnDisp, h.OnDisp)
		out.OnPlays = chain(out.OnPlays, h.OnPlays)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
