package backend

import (
	"crypto/rand"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/lixenwraith/crusher/clock"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrObjectNotFound  = errors.New("object not found")
	ErrSessionEnded    = errors.New("session already ended")
	ErrUnknownMode     = errors.New("unknown game mode")
)

// CrushObject is a catalog entry as served to clients
type CrushObject struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Type              string  `json:"type"`
	Difficulty        int     `json:"difficulty"`
	Sound             string  `json:"sound"`
	Particles         string  `json:"particles"`
	VibrationPattern  []int   `json:"vibration_pattern"`
	CrushTime         float64 `json:"crush_time"`
	SatisfactionScore int     `json:"satisfaction_score"`
}

// GameMode describes one selectable mode
type GameMode struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// SessionStats is the stats payload of a session
type SessionStats struct {
	TotalCrushed      int      `json:"total_crushed"`
	TotalSatisfaction int      `json:"total_satisfaction"`
	ObjectsCrushed    []string `json:"objects_crushed"`
	SessionDuration   int      `json:"session_duration"`
}

type session struct {
	id           string
	mode         string
	crushed      []string
	satisfaction int
	started      time.Time
	ended        time.Time
	active       bool
}

// DefaultCatalog returns the five built-in objects
func DefaultCatalog() []CrushObject {
	return []CrushObject{
		{ID: "can_aluminum", Name: "Aluminum Can", Type: "can", Difficulty: 1, Sound: "can_crush.mp3", Particles: "metal", VibrationPattern: []int{100, 50, 200}, CrushTime: 2.5, SatisfactionScore: 8},
		{ID: "cardboard_box", Name: "Cardboard Box", Type: "box", Difficulty: 2, Sound: "cardboard_crush.mp3", Particles: "paper", VibrationPattern: []int{150, 100, 150, 100}, CrushTime: 3.0, SatisfactionScore: 7},
		{ID: "phone_old", Name: "Old Phone", Type: "electronics", Difficulty: 3, Sound: "electronics_crush.mp3", Particles: "mixed", VibrationPattern: []int{200, 150, 300, 100}, CrushTime: 4.0, SatisfactionScore: 10},
		{ID: "glass_bottle", Name: "Glass Bottle", Type: "glass", Difficulty: 4, Sound: "glass_shatter.mp3", Particles: "glass", VibrationPattern: []int{50, 200, 50, 200, 300}, CrushTime: 1.8, SatisfactionScore: 9},
		{ID: "plastic_bottle", Name: "Plastic Bottle", Type: "plastic", Difficulty: 1, Sound: "plastic_crush.mp3", Particles: "plastic", VibrationPattern: []int{80, 40, 120}, CrushTime: 2.2, SatisfactionScore: 6},
	}
}

// DefaultModes returns the three game modes
func DefaultModes() []GameMode {
	return []GameMode{
		{ID: "interactive", Name: "Interactive Mode", Description: "Tap to crush objects at your own pace", Icon: "👆"},
		{ID: "auto", Name: "Auto Mode", Description: "Watch objects crush automatically in a relaxing sequence", Icon: "🔄"},
		{ID: "mixed", Name: "Mixed Mode", Description: "Combination of auto and interactive crushing", Icon: "🎭"},
	}
}

// Store keeps the catalog and every session in memory
type Store struct {
	mu       sync.RWMutex
	clk      clock.Clock
	catalog  []CrushObject
	modes    []GameMode
	sessions map[string]*session
}

// NewStore creates a store with the default catalog; c may be nil for real time
func NewStore(c clock.Clock) *Store {
	if c == nil {
		c = clock.Real()
	}
	return &Store{
		clk:      c,
		catalog:  DefaultCatalog(),
		modes:    DefaultModes(),
		sessions: make(map[string]*session),
	}
}

// Objects returns a copy of the catalog
func (s *Store) Objects() []CrushObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CrushObject, len(s.catalog))
	copy(out, s.catalog)
	return out
}

// Object looks up one catalog entry
func (s *Store) Object(id string) (CrushObject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objectLocked(id)
}

func (s *Store) objectLocked(id string) (CrushObject, bool) {
	for _, o := range s.catalog {
		if o.ID == id {
			return o, true
		}
	}
	return CrushObject{}, false
}

// Modes returns the mode list
func (s *Store) Modes() []GameMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]GameMode, len(s.modes))
	copy(out, s.modes)
	return out
}

// Start opens a session, an empty mode means interactive
func (s *Store) Start(mode string) (string, error) {
	if mode == "" {
		mode = "interactive"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	known := false
	for _, m := range s.modes {
		if m.ID == mode {
			known = true
			break
		}
	}
	if !known {
		return "", ErrUnknownMode
	}

	id := generateSessionID()
	for s.sessions[id] != nil {
		id = generateSessionID()
	}
	s.sessions[id] = &session{
		id:      id,
		mode:    mode,
		crushed: []string{},
		started: s.clk.Now(),
		active:  true,
	}
	return id, nil
}

// Crush records a crush and returns the crushed object
func (s *Store) Crush(sessionID, objectID string) (CrushObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return CrushObject{}, ErrSessionNotFound
	}
	obj, ok := s.objectLocked(objectID)
	if !ok {
		return CrushObject{}, ErrObjectNotFound
	}
	if !sess.active {
		return CrushObject{}, ErrSessionEnded
	}

	sess.crushed = append(sess.crushed, obj.ID)
	sess.satisfaction += obj.SatisfactionScore
	return obj, nil
}

// Stats returns the session statistics
func (s *Store) Stats(sessionID string) (SessionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return SessionStats{}, ErrSessionNotFound
	}
	return s.statsLocked(sess), nil
}

// End closes the session, ending twice is allowed and keeps the first end time
func (s *Store) End(sessionID string) (SessionStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return SessionStats{}, ErrSessionNotFound
	}
	if sess.active {
		sess.active = false
		sess.ended = s.clk.Now()
	}
	return s.statsLocked(sess), nil
}

// Mode returns the mode a session was started with
func (s *Store) Mode(sessionID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return "", false
	}
	return sess.mode, true
}

func (s *Store) statsLocked(sess *session) SessionStats {
	end := s.clk.Now()
	if !sess.active {
		end = sess.ended
	}
	ids := make([]string, len(sess.crushed))
	copy(ids, sess.crushed)
	return SessionStats{
		TotalCrushed:      len(sess.crushed),
		TotalSatisfaction: sess.satisfaction,
		ObjectsCrushed:    ids,
		SessionDuration:   int(end.Sub(sess.started) / time.Second),
	}
}

// generateSessionID generates a random alphanumeric session id
func generateSessionID() string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	result := make([]byte, 16)
	for i := range result {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		result[i] = charset[n.Int64()]
	}
	return "sess_" + string(result)
}
