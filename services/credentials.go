// Package services holds the account and order use cases behind the HTTP controllers.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"gravecare-api/apperrors"
	"gravecare-api/models"
	"gravecare-api/store"
	"gravecare-api/utils"
)

// TokenIssuer issues session tokens for a user id.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User  models.PublicUser `json:"user"`
	Token string            `json:"token"`
}

// CredentialService registers and authenticates users.
type CredentialService struct {
	users  store.UserStore
	tokens TokenIssuer
	cost   int
	log    logrus.FieldLogger
}

// NewCredentialService creates a CredentialService. cost is the bcrypt cost;
// values outside bcrypt's range fall back to bcrypt.DefaultCost.
func NewCredentialService(users store.UserStore, tokens TokenIssuer, cost int, log logrus.FieldLogger) *CredentialService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &CredentialService{users: users, tokens: tokens, cost: cost, log: log}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account and signs the new user in.
func (s *CredentialService) Register(ctx context.Context, name, email, password string) (AuthResult, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return AuthResult{}, apperrors.MissingField("Name, email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return AuthResult{}, apperrors.InvalidField("Password must be at most 72 bytes")
	}
	if err != nil {
		return AuthResult{}, apperrors.Internal("Error hashing password", err)
	}

	user, err := s.users.Create(ctx, models.User{Name: name, Email: email, Password: string(hash)})
	if err != nil {
		if !apperrors.IsCode(err, apperrors.CodeDuplicateEmail) {
			utils.LoggerFrom(ctx, s.log).WithError(err).WithField("op", "register").Error("create user failed")
		}
		return AuthResult{}, err
	}

	return s.signIn(ctx, user, "register")
}

// Login checks credentials and issues a fresh session token.
func (s *CredentialService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return AuthResult{}, apperrors.MissingField("Email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return AuthResult{}, apperrors.UserNotFound()
	}
	if err != nil {
		utils.LoggerFrom(ctx, s.log).WithError(err).WithField("op", "login").Error("find user failed")
		return AuthResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return AuthResult{}, apperrors.InvalidCredentials()
	}

	return s.signIn(ctx, user, "login")
}

// Profile returns the public projection of the user with the given id.
func (s *CredentialService) Profile(ctx context.Context, userID string) (models.PublicUser, error) {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return models.PublicUser{}, apperrors.UserNotFound()
	}
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.PublicUser{}, apperrors.UserNotFound()
	}
	if err != nil {
		utils.LoggerFrom(ctx, s.log).WithError(err).WithFields(logrus.Fields{"op": "profile", "user_id": userID}).Error("find user failed")
		return models.PublicUser{}, err
	}
	return user.Public(), nil
}

func (s *CredentialService) signIn(ctx context.Context, user models.User, op string) (AuthResult, error) {
	token, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		utils.LoggerFrom(ctx, s.log).WithError(err).WithFields(logrus.Fields{"op": op, "user_id": user.ID.Hex()}).Error("issue token failed")
		return AuthResult{}, apperrors.Internal("Error generating token", err)
	}
	return AuthResult{User: user.Public(), Token: token}, nil
}
