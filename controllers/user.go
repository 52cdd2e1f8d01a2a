package controllers

import (
	"context"
	"net/http"

	"gravecare-api/middleware"
	"gravecare-api/models"
	"gravecare-api/services"
	"gravecare-api/utils"
)

// Accounts is the credential use case behind the user endpoints
type Accounts interface {
	Register(ctx context.Context, name, email, password string) (services.AuthResult, error)
	Login(ctx context.Context, email, password string) (services.AuthResult, error)
	Profile(ctx context.Context, userID string) (models.PublicUser, error)
}

// UserController handles user-related requests
type UserController struct {
	Accounts Accounts
}

// NewUserController creates a new UserController
func NewUserController(accounts Accounts) *UserController {
	return &UserController{Accounts: accounts}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles user registration
func (uc *UserController) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	res, err := uc.Accounts.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	utils.JSONResponse(w, http.StatusCreated, res)
}

// Login handles user login
func (uc *UserController) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	res, err := uc.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	utils.JSONResponse(w, http.StatusOK, res)
}

// Me returns the authenticated user's profile
func (uc *UserController) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		utils.ErrorResponse(w, errUnauthenticated())
		return
	}

	user, err := uc.Accounts.Profile(r.Context(), userID)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	utils.JSONResponse(w, http.StatusOK, user)
}
