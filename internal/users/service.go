package users

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/hivekeeper/internal/dht"
	"github.com/dmitrijs2005/hivekeeper/internal/logging"
	"github.com/dmitrijs2005/hivekeeper/internal/model"
	"github.com/dmitrijs2005/hivekeeper/internal/process"
)

// Service offers blocking identity operations for callers that do not want
// to drive processes themselves.
type Service struct {
	facade  dht.Facade
	logger  logging.Logger
	keyBits int
	waiter  *process.Waiter
}

type ServiceOption func(*Service)

func WithLogger(l logging.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithKeyBits sets the RSA modulus size of new identities.
func WithKeyBits(bits int) ServiceOption {
	return func(s *Service) {
		s.keyBits = bits
	}
}

// WithWaiter replaces the default 20 one-second ticks.
func WithWaiter(w *process.Waiter) ServiceOption {
	return func(s *Service) {
		if w != nil {
			s.waiter = w
		}
	}
}

func NewService(facade dht.Facade, opts ...ServiceOption) *Service {
	s := &Service{
		facade: facade,
		logger: logging.Nop(),
		waiter: process.NewWaiter(process.DefaultWaiterTicks, process.DefaultWaiterInterval),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register runs a registration and waits for its outcome. If the waiter
// gives up, the registration keeps running in the background and
// common.ErrWaiterTimeout is returned.
func (s *Service) Register(ctx context.Context, creds model.Credentials) (*model.UserProfile, error) {
	p := NewRegisterProcess(s.facade, creds, RegisterConfig{KeyBits: s.keyBits, Logger: s.logger})
	l := process.NewResultListener()
	p.AddListener(l)

	if err := p.Start(ctx); err != nil {
		return nil, err
	}
	if err := s.waiter.WaitFor(ctx, l); err != nil {
		s.logger.Warn(ctx, "stopped waiting for registration", "user", creds.UserID(), "error", err)
		return nil, fmt.Errorf("register %s: %w", creds.UserID(), err)
	}
	if l.HasFailed() {
		return nil, fmt.Errorf("register %s: %w", creds.UserID(), l.Cause())
	}

	profile := p.UserProfile()
	s.logger.Info(ctx, "user registered", "user", creds.UserID())
	return profile, nil
}

// Profile opens the caller's own profile.
func (s *Service) Profile(ctx context.Context, creds model.Credentials) (*model.UserProfile, error) {
	return FetchProfile(ctx, s.facade, creds)
}

// PublicKey returns another user's published key.
func (s *Service) PublicKey(ctx context.Context, userID string) (*model.UserPublicKey, error) {
	return FetchPublicKey(ctx, s.facade, userID)
}
