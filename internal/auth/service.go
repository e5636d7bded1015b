// Package auth owns the current-user identity: login, register, logout and
// the current-user fetch. No operation here propagates an error to its
// caller; failures surface as notifications or as a Result carrying the
// server's message.
package auth

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"chatlink/internal/notify"
	"chatlink/internal/rest"
	"chatlink/internal/store"
	"chatlink/internal/tokenstore"
	"chatlink/pkg/chat"
)

type Service struct {
	client   *rest.Client
	tokens   *tokenstore.Store
	state    *store.Store
	notifier notify.Notifier
	logger   *zap.Logger
}

func NewService(client *rest.Client, tokens *tokenstore.Store, state *store.Store, notifier notify.Notifier, logger *zap.Logger) *Service {
	return &Service{
		client:   client,
		tokens:   tokens,
		state:    state,
		notifier: notifier,
		logger:   logger,
	}
}

// Result reports the outcome of login/register without raising an error.
type Result struct {
	Success      bool
	ErrorMessage string
}

type RegisterInput struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// sessionResponse is the body of a successful login or register.
type sessionResponse struct {
	User         chat.User `json:"user"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken"`
}

func (s *Service) Login(ctx context.Context, email, password string) Result {
	var resp sessionResponse
	err := s.client.Post(ctx, s.client.AuthPath("/login"), map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return s.failedAuth("login", err)
	}
	s.establishSession(resp)
	s.notifier.Notify(notify.Notification{
		Title:       "Success",
		Description: "You have successfully logged in",
	})
	return Result{Success: true}
}

// Register creates an account. Like Login it stores the issued tokens and
// populates the current user, so a fresh registration is immediately signed
// in.
func (s *Service) Register(ctx context.Context, input RegisterInput) Result {
	var resp sessionResponse
	err := s.client.Post(ctx, s.client.AuthPath("/register"), input, &resp)
	if err != nil {
		return s.failedAuth("register", err)
	}
	s.establishSession(resp)
	s.notifier.Notify(notify.Notification{
		Title:       "Success",
		Description: "You have successfully registered",
	})
	return Result{Success: true}
}

func (s *Service) establishSession(resp sessionResponse) {
	if err := s.tokens.Save(resp.Token, resp.RefreshToken); err != nil {
		s.logger.Warn("failed to persist tokens", zap.Error(err))
	}
	s.client.SetAuthToken(resp.Token)

	user := resp.User
	user.IsActive = true
	s.state.SetCurrentUser(user)
	s.state.SetAuthError("")
}

func (s *Service) failedAuth(op string, err error) Result {
	msg := "Something went wrong"
	var apiErr *rest.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		msg = apiErr.Message
	}
	s.logger.Warn("auth request failed", zap.String("op", op), zap.Error(err))
	s.state.SetAuthError(msg)
	return Result{Success: false, ErrorMessage: msg}
}

// Logout tears the session down locally first: tokens and identity are gone
// even when the server cannot be reached. The server-side logout is best
// effort.
func (s *Service) Logout(ctx context.Context) {
	if err := s.tokens.Clear(); err != nil {
		s.logger.Warn("failed to clear tokens", zap.Error(err))
	}
	s.state.ClearCurrentUser()
	s.client.ClearAuthToken()

	if err := s.client.Post(ctx, s.client.AuthPath("/logout"), nil, nil); err != nil {
		s.logger.Debug("server logout failed", zap.Error(err))
	}
}

// GetCurrentUser refreshes the identity from the server. Without a stored
// access token it resolves to "no user" without a network call; the same
// happens on any request failure.
func (s *Service) GetCurrentUser(ctx context.Context) {
	access := s.tokens.AccessToken()
	if access == "" {
		s.state.ClearCurrentUser()
		return
	}
	s.client.SetAuthToken(access)

	var user chat.User
	if err := s.client.Get(ctx, s.client.AuthPath("/current-user"), &user); err != nil {
		s.logger.Debug("current-user fetch failed", zap.Error(err))
		s.state.ClearCurrentUser()
		return
	}
	if user.Email == "" {
		s.state.ClearCurrentUser()
		return
	}
	user.IsActive = true
	s.state.SetCurrentUser(user)
}

func (s *Service) IsAuthenticated() bool {
	return s.state.IsAuthenticated()
}
