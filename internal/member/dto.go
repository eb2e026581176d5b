package member

import (
	"errors"
	"strings"
)

// CreateMemberDTO represents the request payload for enrolling a member
type CreateMemberDTO struct {
	Email    string  `json:"email" validate:"required,email"`
	FullName string  `json:"full_name" validate:"required,min=1,max=200"`
	Phone    *string `json:"phone,omitempty"`
}

// Validate validates the CreateMemberDTO
func (dto CreateMemberDTO) Validate() error {
	if dto.Email == "" {
		return errors.New("email is required")
	}
	if !strings.Contains(dto.Email, "@") {
		return errors.New("email is invalid")
	}
	if dto.FullName == "" {
		return errors.New("full name is required")
	}
	if len(dto.FullName) > 200 {
		return errors.New("full name must be less than 200 characters")
	}
	return nil
}

// UpdateMemberDTO represents the request payload for updating member details
type UpdateMemberDTO struct {
	FullName *string `json:"full_name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

// Validate validates the UpdateMemberDTO
func (dto UpdateMemberDTO) Validate() error {
	if dto.FullName != nil && *dto.FullName == "" {
		return errors.New("full name cannot be empty")
	}
	if dto.FullName != nil && len(*dto.FullName) > 200 {
		return errors.New("full name must be less than 200 characters")
	}
	return nil
}

// UpdateMemberStatusDTO represents the request for changing a member's status
type UpdateMemberStatusDTO struct {
	Status string `json:"status" validate:"required,oneof=active suspended cancelled"`
}

// Validate validates the UpdateMemberStatusDTO
func (dto UpdateMemberStatusDTO) Validate() error {
	switch dto.Status {
	case StatusActive, StatusSuspended, StatusCancelled:
		return nil
	default:
		return errors.New("status must be one of 'active', 'suspended' or 'cancelled'")
	}
}
