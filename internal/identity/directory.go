// Package identity resolves user ids to display attributes.
// Results are used for enrichment only; callers degrade gracefully on error.
package identity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"social-backend/internal/models"
	"social-backend/internal/utils"
)

// ErrUnknownUser is returned when the directory has no entry for the id.
var ErrUnknownUser = errors.New("identity: unknown user")

type Directory interface {
	DisplayInfo(ctx context.Context, userID string) (*models.DisplayInfo, error)
}

// Static is an in-memory directory, used with STORE_DRIVER=memory and in tests.
type Static struct {
	mu    sync.RWMutex
	users map[string]models.DisplayInfo
}

func NewStatic(users ...models.DisplayInfo) *Static {
	s := &Static{users: make(map[string]models.DisplayInfo, len(users))}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *Static) Put(info models.DisplayInfo) {
	s.mu.Lock()
	s.users[info.ID] = info
	s.mu.Unlock()
}

func (s *Static) DisplayInfo(_ context.Context, userID string) (*models.DisplayInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.users[userID]
	if !ok {
		return nil, ErrUnknownUser
	}
	return &info, nil
}

// LoadStatic builds a Static directory from a JSON array of display infos:
// [{"_id": "u1", "name": "Ana", "avatarUrl": "https://..."}].
func LoadStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("identity: read users file: %w", err)
	}
	var users []models.DisplayInfo
	if err := utils.SafeJSONParse(data, &users); err != nil {
		return nil, fmt.Errorf("identity: parse users file: %w", err)
	}
	for _, u := range users {
		if u.ID == "" {
			return nil, fmt.Errorf("identity: users file %s has an entry without _id", path)
		}
	}
	return NewStatic(users...), nil
}
