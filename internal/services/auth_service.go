package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joshua-takyi/repairhub/internal/helpers"
	"github.com/joshua-takyi/repairhub/internal/models"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	users  models.UserRepo
	admins models.AdminRepo
	techs  models.TechnicianRepo
	tokens *helpers.TokenManager
	logger *slog.Logger
	now    func() time.Time
}

func NewAuthService(users models.UserRepo, admins models.AdminRepo, techs models.TechnicianRepo, tokens *helpers.TokenManager, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		admins: admins,
		techs:  techs,
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}
}

type SignupInput struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

func (as *AuthService) Signup(ctx context.Context, in SignupInput) (*LoginResult, error) {
	if !helpers.IsPasswordStrong(in.Password) {
		return nil, ErrWeakPassword
	}
	user := &models.User{
		Name:    helpers.StringTrim(in.Name),
		Email:   in.Email,
		Phone:   strings.TrimSpace(in.Phone),
		Address: helpers.StringTrim(in.Address),
	}
	user.BeforeCreate(as.now())
	if err := models.Validate.Struct(user); err != nil {
		return nil, invalid(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hash)

	created, err := as.users.CreateUser(ctx, user)
	if errors.Is(err, models.ErrDuplicate) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}
	as.logger.Info("customer signed up", "user_id", created.ID.Hex())
	return as.session(created.ID.Hex(), created.Email, helpers.RoleCustomer, created)
}

func (as *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := as.users.GetUserByEmail(ctx, models.NormalizeEmail(email))
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.Password == "" || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if user.IsBlocked() {
		return nil, ErrAccountBlocked
	}
	return as.session(user.ID.Hex(), user.Email, helpers.RoleCustomer, user)
}

func (as *AuthService) AdminLogin(ctx context.Context, email, password string) (*LoginResult, error) {
	admin, err := as.admins.GetAdminByEmail(ctx, models.NormalizeEmail(email))
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	as.logger.Info("admin logged in", "admin_id", admin.ID.Hex())
	return as.session(admin.ID.Hex(), admin.Email, helpers.RoleAdmin, admin)
}

// BootstrapAdmin creates the configured admin account if it does not exist.
func (as *AuthService) BootstrapAdmin(ctx context.Context, email, password string) error {
	email = models.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil
	}
	if _, err := as.admins.GetAdminByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return err
	}
	if !helpers.IsPasswordStrong(password) {
		return ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	admin := &models.Admin{Name: "Administrator", Email: email, Password: string(hash), CreatedAt: as.now()}
	if err := models.Validate.Struct(admin); err != nil {
		return invalid(err)
	}
	if _, err := as.admins.CreateAdmin(ctx, admin); err != nil && !errors.Is(err, models.ErrDuplicate) {
		return err
	}
	as.logger.Info("bootstrap admin created", "email", email)
	return nil
}

// Me returns the stored profile behind the session.
func (as *AuthService) Me(ctx context.Context, actor Actor) (any, error) {
	id, err := actor.ObjectID()
	switch {
	case actor.IsAdmin() && err != nil:
		return map[string]string{"id": actor.ID, "role": actor.Role}, nil
	case err != nil:
		return nil, ErrAccountNotFound
	}

	switch actor.Role {
	case helpers.RoleAdmin:
		return as.admins.GetAdminByID(ctx, id)
	case helpers.RoleTechnician:
		return as.techs.GetTechnicianByID(ctx, id)
	default:
		return as.users.GetUserByID(ctx, id)
	}
}

func (as *AuthService) session(subject, email, role string, account any) (*LoginResult, error) {
	token, exp, err := as.tokens.Issue(subject, email, role)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: exp, Role: role, Account: account}, nil
}
