package service

import (
	"context"
	"errors"
	"testing"

	"github.com/atinyakov/agritracker/internal/common"
	"github.com/atinyakov/agritracker/internal/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type mockAuthRepo struct {
	CreateUserFunc        func(ctx context.Context, user *models.User) error
	GetUserByUsernameFunc func(ctx context.Context, username string) (*models.User, error)
}

func (m *mockAuthRepo) CreateUser(ctx context.Context, user *models.User) error {
	return m.CreateUserFunc(ctx, user)
}
func (m *mockAuthRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return m.GetUserByUsernameFunc(ctx, username)
}

// fakeHasher "hashes" by prefixing, which is enough to check the wiring.
type fakeHasher struct {
	hashErr     error
	dummyCalls  int
	verifyCalls int
}

func (f *fakeHasher) Hash(password string) (string, error) {
	if f.hashErr != nil {
		return "", f.hashErr
	}
	return "hashed:" + password, nil
}
func (f *fakeHasher) Verify(password, hash string) bool {
	f.verifyCalls++
	return hash == "hashed:"+password
}
func (f *fakeHasher) DummyVerify(string) { f.dummyCalls++ }

type fakeTokens struct {
	issued    string
	issueErr  error
	claims    map[string]any
	verifyErr error
}

func (f *fakeTokens) IssueFor(identity string) (string, error) {
	if f.issueErr != nil {
		return "", f.issueErr
	}
	f.issued = identity
	return "token-for-" + identity, nil
}
func (f *fakeTokens) Verify(string) (map[string]any, error) {
	return f.claims, f.verifyErr
}

func TestRegister_Success(t *testing.T) {
	var stored *models.User
	repo := &mockAuthRepo{
		CreateUserFunc: func(ctx context.Context, user *models.User) error {
			stored = user
			return nil
		},
	}
	svc := NewAuthService(repo, &fakeHasher{}, &fakeTokens{}, nil)

	if err := svc.Register(context.Background(), "carol", "s3cret!"); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if stored == nil {
		t.Fatal("expected CreateUser to be called on repo")
	}
	if stored.Username != "carol" {
		t.Errorf("stored username = %q; want %q", stored.Username, "carol")
	}
	if stored.PasswordHash != "hashed:s3cret!" {
		t.Errorf("stored hash = %q; want hashed password", stored.PasswordHash)
	}
	if stored.ID == "" {
		t.Error("expected a generated user ID")
	}
}

func TestRegister_LogsOnce(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	repo := &mockAuthRepo{
		CreateUserFunc: func(context.Context, *models.User) error { return nil },
	}
	svc := NewAuthService(repo, &fakeHasher{}, &fakeTokens{}, zap.New(core))

	if err := svc.Register(context.Background(), "gina", "password"); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	entries := logs.FilterMessage("user registered").All()
	if len(entries) != 1 {
		t.Fatalf("got %d \"user registered\" entries; want 1", len(entries))
	}
	if got := entries[0].ContextMap()["username"]; got != "gina" {
		t.Errorf("logged username = %v; want gina", got)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	repo := &mockAuthRepo{
		CreateUserFunc: func(context.Context, *models.User) error { return common.ErrConflict },
	}
	svc := NewAuthService(repo, &fakeHasher{}, &fakeTokens{}, nil)

	err := svc.Register(context.Background(), "dave", "password")
	if !errors.Is(err, common.ErrConflict) {
		t.Fatalf("Register error = %v; want ErrConflict", err)
	}
}

func TestRegister_RepoError(t *testing.T) {
	repo := &mockAuthRepo{
		CreateUserFunc: func(context.Context, *models.User) error { return errors.New("insert failed") },
	}
	svc := NewAuthService(repo, &fakeHasher{}, &fakeTokens{}, nil)

	err := svc.Register(context.Background(), "erin", "password")
	if !errors.Is(err, common.ErrDependency) {
		t.Fatalf("Register error = %v; want ErrDependency", err)
	}
}

func TestRegister_HashError(t *testing.T) {
	called := false
	repo := &mockAuthRepo{
		CreateUserFunc: func(context.Context, *models.User) error { called = true; return nil },
	}
	svc := NewAuthService(repo, &fakeHasher{hashErr: errors.New("no entropy")}, &fakeTokens{}, nil)

	if err := svc.Register(context.Background(), "frank", "password"); err == nil {
		t.Fatal("expected error")
	}
	if called {
		t.Error("CreateUser must not be called when hashing fails")
	}
}

func TestLogin(t *testing.T) {
	alice := &models.User{ID: "1", Username: "alice", PasswordHash: "hashed:wonderland"}

	tests := []struct {
		name      string
		username  string
		password  string
		repoErr   error
		wantToken string
		wantErr   error
		wantDummy int
	}{
		{name: "valid credentials", username: "alice", password: "wonderland", wantToken: "token-for-alice"},
		{name: "wrong password", username: "alice", password: "nope", wantErr: common.ErrInvalidCredentials},
		{name: "unknown user", username: "zed", password: "wonderland", repoErr: common.ErrNotFound, wantErr: common.ErrInvalidCredentials, wantDummy: 1},
		{name: "storage failure", username: "alice", password: "wonderland", repoErr: errors.New("db down"), wantErr: common.ErrDependency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockAuthRepo{
				GetUserByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
					if username != tt.username {
						t.Errorf("GetUserByUsername received %q; want %q", username, tt.username)
					}
					if tt.repoErr != nil {
						return nil, tt.repoErr
					}
					return alice, nil
				},
			}
			hasher := &fakeHasher{}
			svc := NewAuthService(repo, hasher, &fakeTokens{}, nil)

			token, err := svc.Login(context.Background(), tt.username, tt.password)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Login error = %v; want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("Login returned error: %v", err)
			}
			if token != tt.wantToken {
				t.Errorf("token = %q; want %q", token, tt.wantToken)
			}
			if hasher.dummyCalls != tt.wantDummy {
				t.Errorf("DummyVerify calls = %d; want %d", hasher.dummyCalls, tt.wantDummy)
			}
		})
	}
}

func TestLogin_SameErrorForUnknownUserAndWrongPassword(t *testing.T) {
	repo := &mockAuthRepo{
		GetUserByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			if username == "alice" {
				return &models.User{Username: "alice", PasswordHash: "hashed:right"}, nil
			}
			return nil, common.ErrNotFound
		},
	}
	svc := NewAuthService(repo, &fakeHasher{}, &fakeTokens{}, nil)

	_, errWrong := svc.Login(context.Background(), "alice", "wrong")
	_, errUnknown := svc.Login(context.Background(), "bob", "wrong")
	if errWrong == nil || errUnknown == nil || errWrong.Error() != errUnknown.Error() {
		t.Errorf("login errors differ: %v vs %v", errWrong, errUnknown)
	}
}

func TestVerifyToken(t *testing.T) {
	valid := &fakeTokens{claims: map[string]any{"sub": "alice"}}
	svc := NewAuthService(&mockAuthRepo{}, &fakeHasher{}, valid, nil)

	claims, err := svc.VerifyToken("t")
	if err != nil {
		t.Fatalf("VerifyToken returned error: %v", err)
	}
	if claims["sub"] != "alice" {
		t.Errorf("claims = %v", claims)
	}

	invalid := &fakeTokens{verifyErr: errors.New("invalid token")}
	svc = NewAuthService(&mockAuthRepo{}, &fakeHasher{}, invalid, nil)
	if _, err := svc.VerifyToken("t"); !errors.Is(err, common.ErrUnauthenticated) {
		t.Errorf("VerifyToken error = %v; want ErrUnauthenticated", err)
	}
}
