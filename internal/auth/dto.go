package auth

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	DeviceID string `json:"device_id"`
}

// VerifyOtpDTO completes a step-up challenge.
type VerifyOtpDTO struct {
	ChallengeID    string `json:"challenge_id"`
	Code           string `json:"code"`
	DeviceID       string `json:"device_id"`
	DeviceName     string `json:"device_name,omitempty"`
	RememberDevice bool   `json:"remember_device"`
}

// RefreshTokenDTO for refresh token requests
type RefreshTokenDTO struct {
	RefreshToken string `json:"refresh_token"`
}

// ValidationError represents a simple validation error from DTO validation.
type ValidationError struct {
	Msg string
}

func (v ValidationError) Error() string { return v.Msg }

// Validate checks required fields and returns a ValidationError on failure.
func (d LoginDTO) Validate() error {
	if d.Email == "" {
		return ValidationError{Msg: "email is required"}
	}
	if d.Password == "" {
		return ValidationError{Msg: "password is required"}
	}
	if d.DeviceID == "" {
		return ValidationError{Msg: "device_id is required"}
	}
	return nil
}

func (d VerifyOtpDTO) Validate() error {
	if d.ChallengeID == "" {
		return ValidationError{Msg: "challenge_id is required"}
	}
	if d.Code == "" {
		return ValidationError{Msg: "code is required"}
	}
	if d.DeviceID == "" {
		return ValidationError{Msg: "device_id is required"}
	}
	return nil
}

// Validate for refresh token DTO
func (d RefreshTokenDTO) Validate() error {
	if d.RefreshToken == "" {
		return ValidationError{Msg: "refresh_token is required"}
	}
	return nil
}
