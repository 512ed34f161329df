package session

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/core-coin/tabula/internal/fault"
	"github.com/core-coin/tabula/internal/models"
	"github.com/core-coin/tabula/pkg/logger"
)

// Store keeps in-flight re-target sessions in memory with per-entry TTL.
// Sessions are single-use tokens sent by mail, so they are deliberately not
// shared across instances: a link is only valid on the instance that issued
// it.
type Store struct {
	logger *logger.Logger

	mu    sync.Mutex
	cache *gocache.Cache
}

func NewStore(defaultTTL time.Duration, logger *logger.Logger) *Store {
	return &Store{
		logger: logger,
		cache:  gocache.New(defaultTTL, 10*time.Minute),
	}
}

func (s *Store) Put(id string, session *models.RetargetSession, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(id, session, ttl)
	return nil
}

func (s *Store) Get(id string) (*models.RetargetSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(id)
}

// Take fetches and deletes under one lock. Two concurrent finalize calls
// for the same link cannot both win.
func (s *Store) Take(id string) (*models.RetargetSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	s.cache.Delete(id)
	return session, nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(id)
	return nil
}

func (s *Store) lookup(id string) (*models.RetargetSession, error) {
	value, found := s.cache.Get(id)
	if !found {
		return nil, fault.New(fault.NotFound, "no session found for this ID")
	}
	session, ok := value.(*models.RetargetSession)
	if !ok {
		s.logger.Error("Session cache holds unexpected value type for ID ", id)
		return nil, fault.New(fault.NotFound, "no session found for this ID")
	}
	return session, nil
}
