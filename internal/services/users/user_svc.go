package users

import (
	"context"
	"database/sql"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// TokenSigner issues bearer tokens for a username.
type TokenSigner interface {
	Sign(username string) (string, error)
}

type IUserService interface {
	// Register creates the account and returns a token for it.
	Register(ctx context.Context, username, password string) (string, error)
	// Login checks the password and returns a fresh token.
	Login(ctx context.Context, username, password string) (string, error)
}

type userService struct {
	db     *sql.DB
	signer TokenSigner
	cost   int
}

// NewUserService hashes passwords with bcrypt at cost; zero means
// bcrypt.DefaultCost.
func NewUserService(db *sql.DB, signer TokenSigner, cost int) IUserService {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &userService{db: db, signer: signer, cost: cost}
}

func (svc *userService) Register(ctx context.Context, username, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), svc.cost)
	if err != nil {
		return "", err
	}

	const ins = `
	  INSERT INTO users (username, password_hash) VALUES ($1, $2)
	  ON CONFLICT (username) DO NOTHING`
	res, err := svc.db.ExecContext(ctx, ins, username, string(hash))
	if err != nil {
		return "", err
	}
	if n, err := res.RowsAffected(); err != nil {
		return "", err
	} else if n == 0 {
		return "", ErrUserExists
	}
	return svc.signer.Sign(username)
}

func (svc *userService) Login(ctx context.Context, username, password string) (string, error) {
	var hash string
	err := svc.db.QueryRowContext(ctx,
		`SELECT password_hash FROM users WHERE username = $1`, username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return svc.signer.Sign(username)
}
