package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"artisan-storefront/internal/auth"
	"artisan-storefront/internal/models"
	"artisan-storefront/internal/store"
	"artisan-storefront/internal/util"

	"go.uber.org/zap"
)

// AccessService answers role questions about the caller
type AccessService struct {
	repo   store.Repository
	logger *zap.Logger
}

// NewAccessService creates a new access service
func NewAccessService(repo store.Repository) *AccessService {
	return &AccessService{repo: repo, logger: util.Named("access")}
}

// UserInfo describes the authenticated caller
type UserInfo struct {
	UserID  string      `json:"userId"`
	Role    models.Role `json:"role"`
	IsAdmin bool        `json:"isAdmin"`
}

func (s *AccessService) roleOf(ctx context.Context, userID string) (models.Role, error) {
	role, err := s.repo.GetUserRole(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return models.RoleCustomer, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get user role: %w", err)
	}
	return role.Role, nil
}

// IsAdmin reports whether the caller holds the admin role. An anonymous caller is not an admin.
func (s *AccessService) IsAdmin(ctx context.Context) (bool, error) {
	ctx, span := util.StartSpan(ctx, "AccessService.IsAdmin")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return false, nil
	}

	role, err := s.roleOf(ctx, userID)
	if err != nil {
		util.RecordError(span, err)
		return false, err
	}
	return role == models.RoleAdmin, nil
}

// RequireAdmin fails unless the caller is an authenticated admin
func (s *AccessService) RequireAdmin(ctx context.Context) error {
	if _, ok := auth.UserIDFromContext(ctx); !ok {
		return ErrAuthenticationRequired
	}

	isAdmin, err := s.IsAdmin(ctx)
	if err != nil {
		return err
	}
	if !isAdmin {
		return ErrAuthorizationDenied
	}
	return nil
}

// Me returns the caller's identity and role, or nil when anonymous
func (s *AccessService) Me(ctx context.Context) (*UserInfo, error) {
	ctx, span := util.StartSpan(ctx, "AccessService.Me")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return nil, nil
	}

	role, err := s.roleOf(ctx, userID)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	return &UserInfo{UserID: userID, Role: role, IsAdmin: role == models.RoleAdmin}, nil
}

// SetUserRole assigns a role to any user. Admin only.
func (s *AccessService) SetUserRole(ctx context.Context, userID string, role models.Role) (*models.UserRole, error) {
	ctx, span := util.StartSpan(ctx, "AccessService.SetUserRole")
	defer span.End()

	if err := s.RequireAdmin(ctx); err != nil {
		return nil, err
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, validationError("user id is required")
	}
	if !role.Valid() {
		return nil, validationError("unknown role %q", role)
	}

	record, err := s.repo.UpsertUserRole(ctx, userID, role)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to set user role: %w", err)
	}

	s.logger.Info("User role updated", zap.String("user_id", userID), zap.String("role", string(role)))
	return record, nil
}

// BootstrapAdmin grants the admin role without a caller check. Reachable only from the CLI.
func (s *AccessService) BootstrapAdmin(ctx context.Context, userID string) (*models.UserRole, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, validationError("user id is required")
	}

	record, err := s.repo.UpsertUserRole(ctx, userID, models.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to grant admin role: %w", err)
	}

	s.logger.Info("Admin role granted", zap.String("user_id", userID))
	return record, nil
}
