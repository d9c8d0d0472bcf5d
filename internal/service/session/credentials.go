package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mamadbah2/stockboard/internal/domain/models"
)

// ErrInvalidCredentials indicates a username/password mismatch.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Verifier checks credentials and returns the matching user profile.
type Verifier interface {
	Verify(ctx context.Context, creds models.Credentials) (models.User, error)
}

// TokenIssuer mints and checks the session token handed to clients.
type TokenIssuer interface {
	Issue(user models.User) (string, error)
	Validate(token string) (Claims, error)
}

// Claims is what a valid token proves about its holder.
type Claims struct {
	ID        string
	User      models.User
	ExpiresAt time.Time
}

// StaticVerifier accepts a single configured account. The password is kept
// only as a bcrypt hash.
type StaticVerifier struct {
	username     string
	passwordHash []byte
	user         models.User
}

// NewStaticVerifier hashes password and binds it to user.
func NewStaticVerifier(username, password string, user models.User) (*StaticVerifier, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash demo password: %w", err)
	}
	if user.Username == "" {
		user.Username = username
	}
	return &StaticVerifier{username: username, passwordHash: hash, user: user}, nil
}

// Verify implements Verifier.
func (v *StaticVerifier) Verify(_ context.Context, creds models.Credentials) (models.User, error) {
	if creds.Username != v.username {
		return models.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(v.passwordHash, []byte(creds.Password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return v.user, nil
}

// JWTIssuer signs HS256 tokens carrying the user's identity.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTIssuer creates an issuer. now may be nil.
func NewJWTIssuer(secret string, ttl time.Duration, now func() time.Time) *JWTIssuer {
	if now == nil {
		now = time.Now
	}
	return &JWTIssuer{secret: []byte(secret), ttl: ttl, now: now}
}

type tokenClaims struct {
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
	Region   string `json:"region,omitempty"`
	jwt.RegisteredClaims
}

// Issue implements TokenIssuer.
func (j *JWTIssuer) Issue(user models.User) (string, error) {
	issuedAt := j.now()
	claims := tokenClaims{
		Username: user.Username,
		Name:     user.Name,
		Role:     user.Role,
		Region:   user.Region,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(j.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Validate implements TokenIssuer.
func (j *JWTIssuer) Validate(tokenString string) (Claims, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return j.secret, nil
	}, jwt.WithTimeFunc(j.now), jwt.WithExpirationRequired())
	if err != nil {
		return Claims{}, fmt.Errorf("validate session token: %w", err)
	}
	if !token.Valid || claims.Username == "" {
		return Claims{}, errors.New("invalid session token")
	}
	return Claims{
		ID: claims.ID,
		User: models.User{
			ID:       claims.Subject,
			Username: claims.Username,
			Name:     claims.Name,
			Role:     claims.Role,
			Region:   claims.Region,
		},
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
