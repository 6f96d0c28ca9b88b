package user

import "time"

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	PhoneNumber  string    `json:"phoneNumber"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RegisterRequest payload of registration.
// swagger:model RegisterRequest
type RegisterRequest struct {
	Username string `json:"username" example:"ana"`
	Email    string `json:"email"    example:"ana@example.com"`
	Password string `json:"password" example:"s3cret-pass"`
}

// LoginRequest accepts either the email or the username in Email.
// swagger:model LoginRequest
type LoginRequest struct {
	Email    string `json:"email"    example:"ana@example.com"`
	Password string `json:"password" example:"s3cret-pass"`
}

// UpdateProfileRequest payload of profile update.
// swagger:model UpdateProfileRequest
type UpdateProfileRequest struct {
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	PhoneNumber *string `json:"phoneNumber"`
}

// ChangePasswordRequest payload of password change.
// swagger:model ChangePasswordRequest
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}
