package recognition

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/artlens/artlens/internal/catalog"
)

// Session is one client's scanning run: a stabilizer of its own plus an
// update channel drained by the SSE handler.
type Session struct {
	ID         string
	Stabilizer *Stabilizer
	StartedAt  time.Time
	Updates    chan SessionUpdate

	mu         sync.Mutex
	lastOutput Output
	closed     bool
}

type SessionUpdate struct {
	Type string
	Data interface{}
}

// LastOutput returns the most recent tick result for the session.
func (s *Session) LastOutput() Output {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOutput
}

// Service owns the engine and the live recognition sessions.
type Service struct {
	engine   *Engine
	location *LocationSlot

	sessions   map[string]*Session
	sessionsMu sync.RWMutex
}

func NewService(snapshot *catalog.Snapshot, matcher Matcher, cfg Config) *Service {
	return &Service{
		engine:   NewEngine(snapshot, matcher, cfg),
		location: &LocationSlot{},
		sessions: make(map[string]*Session),
	}
}

func (s *Service) Engine() *Engine {
	return s.engine
}

// PublishLocation records the latest fix shared by all sessions.
func (s *Service) PublishLocation(loc Location) {
	s.location.Publish(loc)
}

func (s *Service) StartSession() *Session {
	session := &Session{
		ID:         uuid.New().String(),
		Stabilizer: NewStabilizer(s.engine.Config()),
		StartedAt:  time.Now(),
		Updates:    make(chan SessionUpdate, 100),
	}

	s.sessionsMu.Lock()
	s.sessions[session.ID] = session
	s.sessionsMu.Unlock()

	log.Printf("[SESSION] started %s", session.ID)
	return session
}

func (s *Service) GetSession(sessionID string) (*Session, bool) {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()

	session, exists := s.sessions[sessionID]
	return session, exists
}

// ProcessFrame runs one tick for the session. A nil location falls back to
// the last published fix; a zero now falls back to the wall clock.
func (s *Service) ProcessFrame(sessionID string, detections []Detection, loc *Location, now time.Time) (Output, error) {
	session, exists := s.GetSession(sessionID)
	if !exists {
		return Output{}, fmt.Errorf("session not found")
	}

	if loc == nil {
		loc = s.location.Latest()
	}
	if now.IsZero() {
		now = time.Now()
	}

	frame := s.engine.ProcessFrame(detections, loc)
	out := session.Stabilizer.Tick(now, frame)

	// The closed check and the send must share one critical section with
	// StopSession's close, or the send can hit a just-closed channel.
	session.mu.Lock()
	session.lastOutput = out
	if out.NewlyRecognized != nil && !session.closed {
		update := SessionUpdate{
			Type: "recognized",
			Data: map[string]interface{}{
				"artwork_id": out.NewlyRecognized.Entry.ID,
				"title":      out.NewlyRecognized.Entry.DisplayName,
				"box":        out.NewlyRecognized.Box,
			},
		}
		select {
		case session.Updates <- update:
		default:
			log.Printf("[SESSION] %s updates channel full, dropping event", sessionID)
		}
	}
	session.mu.Unlock()

	return out, nil
}

// ResetSession clears the session's sticky state and recognized-key tracker
// so the next qualifying frame announces again.
func (s *Service) ResetSession(sessionID string) error {
	session, exists := s.GetSession(sessionID)
	if !exists {
		return fmt.Errorf("session not found")
	}

	session.Stabilizer.Reset()
	log.Printf("[SESSION] reset %s", sessionID)
	return nil
}

// StopSession removes the session and closes its update stream.
func (s *Service) StopSession(sessionID string) error {
	s.sessionsMu.Lock()
	session, exists := s.sessions[sessionID]
	if exists {
		delete(s.sessions, sessionID)
	}
	s.sessionsMu.Unlock()

	if !exists {
		return fmt.Errorf("session not found")
	}

	session.mu.Lock()
	if !session.closed {
		session.closed = true
		close(session.Updates)
	}
	session.mu.Unlock()

	log.Printf("[SESSION] stopped %s", sessionID)
	return nil
}
