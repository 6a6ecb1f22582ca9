package database

import (
	"context"
	"sync"
	"time"

	"emilia-bot/internal/models"
)

// MemoryStore keeps per-user state in a mutex-guarded map. It backs
// deployments without Postgres and the test suite; semantics match
// UserRepository: one entry per user, toggles are full overwrites.
type MemoryStore struct {
	mu        sync.Mutex
	users     map[int64]*models.User
	favorites map[int64][]models.Favorite
	nextID    int64
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[int64]*models.User),
		favorites: make(map[int64][]models.Favorite),
		nextID:    1,
		now:       time.Now,
	}
}

func (s *MemoryStore) GetOrCreate(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[user.TelegramID]
	if !ok {
		stored = &models.User{
			ID:         s.nextID,
			TelegramID: user.TelegramID,
			CreatedAt:  s.now(),
		}
		s.nextID++
		s.users[user.TelegramID] = stored
	}

	stored.Username = user.Username
	stored.FirstName = user.FirstName
	stored.LastName = user.LastName
	stored.LastInteraction = s.now()

	*user = *stored
	return nil
}

func (s *MemoryStore) SetNSFW(_ context.Context, telegramID int64, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[telegramID]
	if !ok {
		return ErrUserNotFound
	}
	user.NSFWEnabled = enabled
	return nil
}

func (s *MemoryStore) ConfirmAge(_ context.Context, telegramID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[telegramID]
	if !ok {
		return ErrUserNotFound
	}
	user.AgeConfirmed = true
	return nil
}

func (s *MemoryStore) IncrementRequests(_ context.Context, telegramID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[telegramID]
	if !ok {
		return ErrUserNotFound
	}
	user.RequestCount++
	user.LastInteraction = s.now()
	return nil
}

func (s *MemoryStore) Stats(_ context.Context) (*models.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &models.Stats{TotalUsers: len(s.users)}
	cutoff := s.now().Add(-24 * time.Hour)
	for _, user := range s.users {
		if user.LastInteraction.After(cutoff) {
			stats.DailyActive++
		}
		stats.TotalRequests += user.RequestCount
	}
	return stats, nil
}

func (s *MemoryStore) Add(_ context.Context, telegramID int64, imageURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.favorites[telegramID] {
		if f.ImageURL == imageURL {
			return nil
		}
	}
	s.favorites[telegramID] = append(s.favorites[telegramID], models.Favorite{
		ID:        int64(len(s.favorites[telegramID]) + 1),
		UserID:    telegramID,
		ImageURL:  imageURL,
		CreatedAt: s.now(),
	})
	return nil
}

func (s *MemoryStore) ListRecent(_ context.Context, telegramID int64, limit int) ([]models.Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.favorites[telegramID]
	var favorites []models.Favorite
	for i := len(stored) - 1; i >= 0 && len(favorites) < limit; i-- {
		favorites = append(favorites, stored[i])
	}
	return favorites, nil
}
