package auth

import (
	"context"

	"github.com/aura-webinar/portal/internal/models"
	"github.com/aura-webinar/portal/pkg/apiclient"
)

// LoginRequest is the body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignupRequest is the body for POST /api/auth/signup.
type SignupRequest struct {
	FullName        string `json:"full_name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// VerifyOTPRequest is the body for POST /api/auth/verify-otp.
type VerifyOTPRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
	OTP   string `json:"otp" validate:"required,numeric,len=6"`
}

// TokenResponse is the upstream reply carrying a bearer token.
type TokenResponse struct {
	Token       string             `json:"token"`
	User        *models.UserPublic `json:"user,omitempty"`
	RequiresOTP bool               `json:"requires_otp,omitempty"`
}

// Repository calls the upstream auth endpoints.
type Repository struct {
	api *apiclient.Client
}

// NewRepository creates an auth repository.
func NewRepository(api *apiclient.Client) *Repository {
	return &Repository{api: api}
}

// Login exchanges credentials for a token.
func (r *Repository) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	var out TokenResponse
	if err := r.api.Post(ctx, "/auth/login", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Signup creates an account; the upstream then emails a one-time code.
func (r *Repository) Signup(ctx context.Context, req SignupRequest) error {
	body := map[string]string{"full_name": req.FullName, "email": req.Email, "password": req.Password}
	return r.api.Post(ctx, "/auth/signup", body, nil)
}

// VerifyOTP confirms the emailed code and returns a token.
func (r *Repository) VerifyOTP(ctx context.Context, email, otp string) (*TokenResponse, error) {
	var out TokenResponse
	if err := r.api.Post(ctx, "/auth/verify-otp", map[string]string{"email": email, "otp": otp}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResendOTP asks the upstream to email a new code.
func (r *Repository) ResendOTP(ctx context.Context, email string) error {
	return r.api.Post(ctx, "/auth/resend-otp", map[string]string{"email": email}, nil)
}
