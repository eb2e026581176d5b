package user

import (
	"context"
	"fmt"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
	}
}

// Profile returns the user together with the names of their explicit grants,
// so clients can render what the account may do beyond its role.
type Profile struct {
	User
	Grants []string `json:"grants"`
}

func (s *Service) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}

	grants, err := s.repo.GetGrantNames(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user grants: %w", err)
	}

	return &Profile{User: *u, Grants: grants}, nil
}
