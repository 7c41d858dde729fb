// Package devserver is a self-contained double of the story service for
// local development and offline demos. Everything lives in memory; restarting
// the process wipes users, stories and sessions.
package devserver

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"

	"storykeeper/internal/app/client/api"
	"storykeeper/internal/domain/story"
)

type user struct {
	ID           string
	Name         string
	Email        string
	PasswordHash []byte
}

type storedStory struct {
	story.Story
	AuthorID string
	Photo    []byte
}

// Store holds all devserver state behind one mutex. Contention is irrelevant
// at development scale.
type Store struct {
	mu      sync.Mutex
	log     *slog.Logger
	users   map[string]*user // keyed by email
	tokens  map[string]string
	stories map[string]*storedStory
	subs    []api.Subscription
	now     func() time.Time
}

func NewStore(log *slog.Logger) *Store {
	return &Store{
		log:     log,
		users:   make(map[string]*user),
		tokens:  make(map[string]string),
		stories: make(map[string]*storedStory),
		now:     time.Now,
	}
}

func (s *Store) Register(name, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[email]; exists {
		return ErrEmailTaken
	}
	s.users[email] = &user{
		ID:           "user-" + uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}
	s.log.Info("registered user", "email", email)
	return nil
}

// Authenticate checks credentials and mints a session token.
func (s *Store) Authenticate(email, password string) (*story.LoginResult, error) {
	s.mu.Lock()
	u, ok := s.users[email]
	s.mu.Unlock()
	if !ok {
		return nil, ErrUnknownUser
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrWrongPassword
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = u.ID
	s.mu.Unlock()

	return &story.LoginResult{UserID: u.ID, Name: u.Name, Token: token}, nil
}

// ValidateToken resolves a bearer token to a user id.
func (s *Store) ValidateToken(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.tokens[token]
	if !ok {
		return "", ErrBadToken
	}
	return userID, nil
}

// RevokeToken drops a session. Used by tests to simulate expiry.
func (s *Store) RevokeToken(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

// AddStory stores a new story and returns its assigned id. The story's
// display name is the author's name, matching the upstream service.
func (s *Store) AddStory(authorID, description string, photo []byte, lat, lon *float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	authorName := ""
	for _, u := range s.users {
		if u.ID == authorID {
			authorName = u.Name
			break
		}
	}
	if authorName == "" {
		return "", ErrUnknownUser
	}

	id := "story-" + uuid.NewString()
	s.stories[id] = &storedStory{
		Story: story.Story{
			ID:          id,
			Name:        authorName,
			Description: description,
			PhotoURL:    "/v1/images/" + id,
			Lat:         lat,
			Lon:         lon,
			CreatedAt:   s.now().UTC(),
		},
		AuthorID: authorID,
		Photo:    photo,
	}
	s.log.Info("stored story", "id", id, "author", authorID)
	return id, nil
}

// ListStories returns all stories, newest first.
func (s *Store) ListStories() []*story.Story {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*story.Story, 0, len(s.stories))
	for _, st := range s.stories {
		copied := st.Story
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *Store) GetStory(id string) (*story.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stories[id]
	if !ok {
		return nil, ErrStoryNotFound
	}
	copied := st.Story
	return &copied, nil
}

// Photo returns the raw photo bytes for a stored story.
func (s *Store) Photo(id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stories[id]
	if !ok {
		return nil, ErrStoryNotFound
	}
	return st.Photo, nil
}

func (s *Store) Subscribe(sub api.Subscription) {
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
	s.log.Info("registered push subscription", "endpoint", sub.Endpoint)
}

func (s *Store) Subscriptions() []api.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.Subscription(nil), s.subs...)
}
