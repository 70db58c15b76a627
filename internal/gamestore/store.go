// Package gamestore is the in-memory Game Store (§4.6): a concurrency-safe
// map keyed by game id with a second index by room code, unique-code
// generation, and retention-based reaping. Every external command and
// every timer callback funnels through UpdateGame, which is exactly the
// single-writer-per-game executor §5 demands, implemented here as "single
// writer for the whole store" rather than one goroutine per game. That
// trade simplifies the reference implementation; a higher-throughput
// deployment could shard the lock or move to one actor per game without
// changing this package's contract.
package gamestore

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tabletop-engine/hostage-exchange/internal/model"
)

const (
	codeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength      = 6
	maxCodeAttempts = 100
)

var (
	ErrGameNotFound    = errors.New("gamestore: game not found")
	ErrCodeExhausted   = errors.New("gamestore: could not generate a unique room code")
)

// Store is the live collection of games.
type Store struct {
	mu    sync.Mutex
	games map[model.GameID]*model.Game
	byCode map[string]model.GameID
}

func New() *Store {
	return &Store{
		games:  make(map[model.GameID]*model.Game),
		byCode: make(map[string]model.GameID),
	}
}

// NewCode generates a unique room code, retrying on collision up to
// maxCodeAttempts times (§3.7, §4.6).
func (s *Store) NewCode() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		if _, taken := s.byCode[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}

func randomCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("gamestore: reading random bytes: %w", err)
	}
	for i := range buf {
		buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return string(buf), nil
}

// Insert adds a freshly created game to the store under its id and code.
func (s *Store) Insert(g *model.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[g.ID] = g
	s.byCode[strings.ToUpper(g.Code)] = g.ID
}

// Get returns the live game by id.
func (s *Store) Get(id model.GameID) (*model.Game, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	return g, ok
}

// GetByCode looks up a game by its room code, case-insensitively (§6.2).
func (s *Store) GetByCode(code string) (*model.Game, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byCode[strings.ToUpper(code)]
	if !ok {
		return nil, false
	}
	g, ok := s.games[id]
	return g, ok
}

// UpdateGame runs fn against the game under the store's lock, serializing
// it against every other command and timer callback for any game (§5).
// fn's error is returned as-is and changes fn made before returning it are
// not rolled back; the game is returned regardless so a caller can still
// publish after an intentional non-error early return.
func (s *Store) UpdateGame(id model.GameID, fn func(*model.Game) error) (*model.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	if err := fn(g); err != nil {
		return g, err
	}
	return g, nil
}

// Reap removes every FINISHED game whose last mutation is older than
// retention relative to now (§3.8, §4.6).
func (s *Store) Reap(now time.Time, retention time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, g := range s.games {
		if g.Phase != model.PhaseFinished {
			continue
		}
		if now.Sub(g.UpdatedAt) <= retention {
			continue
		}
		delete(s.games, id)
		delete(s.byCode, strings.ToUpper(g.Code))
		removed++
	}
	return removed
}

// Len returns the number of live games, for admin/debug surfacing.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.games)
}

// Snapshot returns a shallow copy of the live game list for admin views.
// Callers must not mutate the returned games without going through
// UpdateGame.
func (s *Store) Snapshot() []*model.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Game, 0, len(s.games))
	for _, g := range s.games {
		out = append(out, g)
	}
	return out
}
