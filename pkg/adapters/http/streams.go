package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/ludics/pkg/domain"
)

// StreamManager fans engine events out to SSE subscribers. Subscribers of
// the empty topic receive every event.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // dialogue id -> set of channels
	logger      *slog.Logger
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      slog.Default(),
	}
}

func (sm *StreamManager) Subscribe(topic string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 16)
	if _, ok := sm.subscribers[topic]; !ok {
		sm.subscribers[topic] = make(map[chan<- string]struct{})
	}
	sm.subscribers[topic][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[topic]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, topic)
			}
		}
	}
}

// Broadcast sends msg to the subscribers of topic and to the global ones.
func (sm *StreamManager) Broadcast(topic string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	targets := []string{""}
	if topic != "" {
		targets = append(targets, topic)
	}
	for _, t := range targets {
		for ch := range sm.subscribers[t] {
			select {
			case ch <- msg:
			default:
				sm.logger.Warn("SSE: client buffer full, dropping message", "topic", t)
			}
		}
	}
}

// Subscribers counts the channels listening on topic.
func (sm *StreamManager) Subscribers(topic string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[topic])
}

// Hooks broadcasts engine lifecycle events as JSON.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	design := func(_ context.Context, e *domain.DesignEvent) {
		sm.publish(e.Deliberation, e)
	}
	global := func(e any) {
		sm.publish("", e)
	}
	return domain.LifecycleHooks{
		OnActAppended:   design,
		OnSubtreeCloned: design,
		OnInteraction:   func(_ context.Context, e *domain.InteractionEvent) { global(e) },
		OnDisp:          func(_ context.Context, e *domain.ComputeEvent) { global(e) },
		OnPlays:         func(_ context.Context, e *domain.ComputeEvent) { global(e) },
	}
}

func (sm *StreamManager) publish(topic string, e any) {
	b, err := json.Marshal(e)
	if err != nil {
		sm.logger.Error("SSE: event encode failed", "err", err)
		return
	}
	sm.Broadcast(topic, string(b))
}

// SubscribeEvents handles the GET /events request (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.fail(w, r, http.StatusInternalServerError, fmt.Errorf("streaming not supported"))
		return
	}

	topic := r.URL.Query().Get("dialogue_id")
	ch, cancel := s.Streams.Subscribe(topic)
	defer cancel()
	s.logger.Info("SSE: subscribed", "dialogue_id", topic)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
