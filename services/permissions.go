package services

import (
	"context"
	"fmt"

	"github.com/Dosada05/escalation-league/models"
	"github.com/Dosada05/escalation-league/repositories"
)

// Capability is a permission already resolved for the caller. The core never
// authenticates; it only checks capabilities.
type Capability string

const (
	CapPodRead        Capability = "pod:read"
	CapPodCreate      Capability = "pod:create"
	CapPodUpdate      Capability = "pod:update"
	CapPodAdminUpdate Capability = "pod:admin_update"
)

// CapabilityResolver is injected into every core operation instead of any
// ambient/global permission lookup, so the core is testable without a live
// session subsystem.
type CapabilityResolver interface {
	HasCapability(ctx context.Context, userID int, capability Capability) (bool, error)
}

// roleCapabilityResolver derives capabilities from the user's role in the
// external user directory. Admins hold every pod capability; players hold
// everything except admin updates.
type roleCapabilityResolver struct {
	userRepo repositories.UserRepository
}

func NewRoleCapabilityResolver(userRepo repositories.UserRepository) CapabilityResolver {
	return &roleCapabilityResolver{userRepo: userRepo}
}

func (r *roleCapabilityResolver) HasCapability(ctx context.Context, userID int, capability Capability) (bool, error) {
	user, err := r.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve capabilities for user %d: %w", userID, err)
	}
	if user.Role == models.RoleAdmin {
		return true, nil
	}
	switch capability {
	case CapPodRead, CapPodCreate, CapPodUpdate:
		return true, nil
	case CapPodAdminUpdate:
		return false, nil
	}
	return false, nil
}
