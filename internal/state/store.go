package state

import (
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/gemini-chat/internal/model"
	"github.com/capitalize-ai/gemini-chat/pkg/logger"
	"github.com/capitalize-ai/gemini-chat/pkg/metrics"
)

// Saver receives the persisted fields after every persisted mutation.
// Implementations must not fail the caller; errors are theirs to log.
type Saver interface {
	Save(Persisted)
}

// Listener observes committed states.
type Listener func(State)

// Store owns the application state. Every action is applied atomically:
// observers only ever see complete states, in commit order.
type Store struct {
	mu    sync.Mutex
	state State
	saver Saver

	notifyMu  sync.Mutex
	listeners map[int]Listener
	nextID    int

	logger *logger.Logger
}

// NewStore creates a store from previously persisted fields.
func NewStore(initial Persisted, saver Saver, log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewNop()
	}
	return &Store{
		state:     FromPersisted(initial),
		saver:     saver,
		listeners: make(map[int]Listener),
		logger:    log.Named("store"),
	}
}

// Dispatch applies an action, persists the result when persisted fields may
// have changed, and notifies listeners. Listeners run synchronously and must
// not dispatch.
func (s *Store) Dispatch(a Action) error {
	_, err := s.apply(a)
	return err
}

// BeginGeneration marks a generation as pending and returns the committed
// state, so the caller sees the conversation the generation belongs to.
func (s *Store) BeginGeneration() (State, error) {
	return s.apply(BeginGeneration{})
}

func (s *Store) apply(a Action) (State, error) {
	s.mu.Lock()
	next, err := Reduce(s.state, a)
	s.state = next

	if a.persisted() && s.saver != nil {
		s.saver.Save(next.Persisted())
	}

	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	if err != nil {
		s.logger.Debug("action rejected", zap.String("action", a.Kind()), zap.Error(err))
	} else {
		s.logger.Debug("action applied", zap.String("action", a.Kind()))
		record(a)
	}

	for _, l := range s.listeners {
		l(next)
	}
	return next, err
}

// Subscribe registers a listener and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	return func() {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		delete(s.listeners, id)
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current returns the active conversation.
func (s *Store) Current() (model.Conversation, bool) {
	return s.Snapshot().Current()
}

// IsLoading reports whether a generation is pending.
func (s *Store) IsLoading() bool {
	return s.Snapshot().IsLoading
}

// StartNewChat creates a conversation, makes it active and returns its id.
func (s *Store) StartNewChat(title string) (string, error) {
	id := model.NewID()
	if err := s.Dispatch(StartNewChat{ID: id, Title: title}); err != nil {
		return "", err
	}
	return id, nil
}

// SwitchConversation activates a conversation if it exists.
func (s *Store) SwitchConversation(id string) {
	_ = s.Dispatch(SwitchConversation{ID: id})
}

// DeleteConversation removes a conversation. Unknown ids are ignored.
func (s *Store) DeleteConversation(id string) {
	_ = s.Dispatch(DeleteConversation{ID: id})
}

// RenameConversation sets an explicit title.
func (s *Store) RenameConversation(id, title string) {
	_ = s.Dispatch(RenameConversation{ID: id, Title: title})
}

// ToggleMessageSelection selects or deselects a message pair.
func (s *Store) ToggleMessageSelection(messageID string) {
	_ = s.Dispatch(ToggleMessageSelection{MessageID: messageID})
}

// DeleteSelectedMessages removes the selected messages.
func (s *Store) DeleteSelectedMessages() {
	_ = s.Dispatch(DeleteSelectedMessages{})
}

// ClearMessageSelection empties the selection.
func (s *Store) ClearMessageSelection() {
	_ = s.Dispatch(ClearMessageSelection{})
}

// UpdateTokenCount stores refreshed counters for a conversation.
func (s *Store) UpdateTokenCount(conversationID string, totalTokens, cachedContentTokenCount int) {
	_ = s.Dispatch(UpdateTokenCount{
		ConversationID:          conversationID,
		TotalTokens:             totalTokens,
		CachedContentTokenCount: cachedContentTokenCount,
	})
}

// ToggleTroubleshootingMode flips troubleshooting mode.
func (s *Store) ToggleTroubleshootingMode() {
	_ = s.Dispatch(ToggleTroubleshootingMode{})
}

// Import replaces all persisted fields.
func (s *Store) Import(p Persisted) {
	_ = s.Dispatch(ImportState{State: p})
}

func record(a Action) {
	switch a.(type) {
	case StartNewChat:
		metrics.ConversationsTotal.Inc()
	case CompleteGeneration:
		metrics.MessagesTotal.WithLabelValues(string(model.RoleUser), "false").Inc()
		metrics.MessagesTotal.WithLabelValues(string(model.RoleModel), "false").Inc()
	case FailGeneration:
		metrics.MessagesTotal.WithLabelValues(string(model.RoleUser), "true").Inc()
		metrics.MessagesTotal.WithLabelValues(string(model.RoleModel), "true").Inc()
	}
}
