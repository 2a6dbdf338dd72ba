package services

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/authcore/internal/models"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	FindByIDFunc             func(ctx context.Context, id string) (*models.User, error)
	FindByEmailFunc          func(ctx context.Context, email string) (*models.User, error)
	FindByResetTokenHashFunc func(ctx context.Context, hash string) (*models.User, error)
	ListFunc                 func(ctx context.Context, limit, offset int) ([]*models.User, error)
	SaveFunc                 func(ctx context.Context, user *models.User) (*models.User, error)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.FindByEmailFunc != nil {
		return m.FindByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) FindByResetTokenHash(ctx context.Context, hash string) (*models.User, error) {
	if m.FindByResetTokenHashFunc != nil {
		return m.FindByResetTokenHashFunc(ctx, hash)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) Save(ctx context.Context, user *models.User) (*models.User, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

// SentMail is one message captured by MockMailer
type SentMail struct {
	Kind      string // "verification" or "reset"
	To        string
	Name      string
	Secret    string // OTP code or reset URL
	ExpiresAt time.Time
}

// MockMailer implements Mailer for testing and records every message
type MockMailer struct {
	mu   sync.Mutex
	Sent []SentMail
	Err  error
}

func (m *MockMailer) record(mail SentMail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, mail)
	return nil
}

func (m *MockMailer) SendVerificationCode(ctx context.Context, to, name, code string, expiresAt time.Time) error {
	return m.record(SentMail{Kind: "verification", To: to, Name: name, Secret: code, ExpiresAt: expiresAt})
}

func (m *MockMailer) SendPasswordReset(ctx context.Context, to, name, resetURL string, expiresAt time.Time) error {
	return m.record(SentMail{Kind: "reset", To: to, Name: name, Secret: resetURL, ExpiresAt: expiresAt})
}

// Last returns the most recent message, if any
func (m *MockMailer) Last() (SentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return SentMail{}, false
	}
	return m.Sent[len(m.Sent)-1], true
}
