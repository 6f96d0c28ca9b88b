package user

import (
	"context"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/MikeMC777/storefront/internal/apperr"
)

type Service struct {
	repo Repository
	log  zerolog.Logger
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log.With().Str("component", "user").Logger()}
}

// Register creates a regular (non admin) account.
func (s *Service) Register(ctx context.Context, in RegisterRequest) (*User, error) {
	return s.create(ctx, in, false)
}

// CreateAdmin creates an account with the admin flag set.
func (s *Service) CreateAdmin(ctx context.Context, in RegisterRequest) (*User, error) {
	return s.create(ctx, in, true)
}

func (s *Service) create(ctx context.Context, in RegisterRequest, admin bool) (*User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, apperr.Validation("username, email and password are required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, apperr.Validation("email is not valid")
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "hash password")
	}
	u := &User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		IsAdmin:      admin,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", u.ID).Bool("admin", admin).Msg("user registered")
	return u, nil
}

// Authenticate checks credentials. Unknown users and wrong passwords are
// reported identically.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*User, error) {
	if strings.TrimSpace(login) == "" || password == "" {
		return nil, apperr.Validation("email and password are required")
	}
	u, err := s.repo.GetByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.Auth("invalid credentials")
		}
		return nil, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		return nil, apperr.Auth("invalid credentials")
	}
	return u, nil
}

func (s *Service) Profile(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateProfile changes username, email and phone number. Empty username or
// email keep the current value; a nil phone keeps it too.
func (s *Service) UpdateProfile(ctx context.Context, id string, in UpdateProfileRequest) (*User, error) {
	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next := *cur
	if v := strings.TrimSpace(in.Username); v != "" {
		next.Username = v
	}
	if v := strings.TrimSpace(in.Email); v != "" {
		if _, err := mail.ParseAddress(v); err != nil {
			return nil, apperr.Validation("email is not valid")
		}
		next.Email = v
	}
	if in.PhoneNumber != nil {
		next.PhoneNumber = strings.TrimSpace(*in.PhoneNumber)
	}

	userTaken, emailTaken, err := s.repo.ExistsOther(ctx, id, next.Username, next.Email)
	if err != nil {
		return nil, err
	}
	if userTaken {
		return nil, apperr.Conflict("username already taken")
	}
	if emailTaken {
		return nil, apperr.Conflict("email already registered")
	}

	if err := s.repo.Update(ctx, &next, false); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ChangePassword(ctx context.Context, id string, in ChangePasswordRequest) error {
	if in.CurrentPassword == "" || in.NewPassword == "" || in.ConfirmPassword == "" {
		return apperr.Validation("all fields are required")
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !CheckPassword(u.PasswordHash, in.CurrentPassword) {
		return apperr.Forbidden("incorrect current password")
	}
	if CheckPassword(u.PasswordHash, in.NewPassword) {
		return apperr.Validation("new password cannot be the same as the current password")
	}
	if in.NewPassword != in.ConfirmPassword {
		return apperr.Validation("new passwords do not match")
	}
	hash, err := HashPassword(in.NewPassword)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, err, "hash password")
	}
	u.PasswordHash = hash
	if err := s.repo.Update(ctx, u, true); err != nil {
		return err
	}
	s.log.Info().Str("user_id", id).Msg("password changed")
	return nil
}

// IsValid reports whether id names an existing user.
func (s *Service) IsValid(ctx context.Context, id string) (bool, error) {
	_, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// IsAdmin reports whether id names an existing admin. Unknown users are not
// admins.
func (s *Service) IsAdmin(ctx context.Context, id string) (bool, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return false, nil
		}
		return false, err
	}
	return u.IsAdmin, nil
}
