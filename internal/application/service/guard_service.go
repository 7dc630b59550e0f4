package service

import (
	"context"
	"strings"
	"time"

	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	"github.com/dukasoft/tillpoint-api/internal/domain/enum"
	"github.com/dukasoft/tillpoint-api/internal/domain/repository"
	"github.com/dukasoft/tillpoint-api/pkg/apperror"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Actor identifies the authenticated user performing a ledger call.
type Actor struct {
	ID    uuid.UUID
	Roles []string
}

// HasRole checks whether the actor holds the given role
func (a Actor) HasRole(names ...string) bool {
	for _, role := range a.Roles {
		for _, name := range names {
			if role == name {
				return true
			}
		}
	}
	return false
}

// Role ranks, lowest to highest. Override authorization requires a rank
// strictly above what the action itself requires.
var roleRanks = map[string]int{
	"cashier":    1,
	"supervisor": 2,
	"manager":    3,
	"admin":      4,
}

func rankOf(roles []string) int {
	rank := 0
	for _, role := range roles {
		if r, ok := roleRanks[strings.ToLower(role)]; ok && r > rank {
			rank = r
		}
	}
	return rank
}

// Minimum role rank per guarded action.
var actionRanks = map[string]int{
	"receipt.modify": 1,
	"receipt.settle": 1,
	"receipt.void":   2,
	"period.open":    3,
	"period.close":   3,
	"period.payout":  3,
}

const overrideGrantTTL = 5 * time.Minute

// GuardService centralizes every permission decision at the ledger boundary:
// ownership checks, role evaluation and single-use override grants.
type GuardService struct {
	grants repository.OverrideGrantRepository
	users  repository.UserRepository
	audit  *AuditService
}

// NewGuardService creates a new guard service
func NewGuardService(
	grants repository.OverrideGrantRepository,
	users repository.UserRepository,
	audit *AuditService,
) *GuardService {
	return &GuardService{grants: grants, users: users, audit: audit}
}

// CanModify reports whether the user owns the receipt.
func (s *GuardService) CanModify(receipt *entity.Receipt, userID uuid.UUID) bool {
	return receipt.OwnerID == userID
}

// Evaluate is the single permission evaluator for role-guarded actions.
func (s *GuardService) Evaluate(actor Actor, action string) error {
	required, ok := actionRanks[action]
	if !ok {
		return apperror.NewAuthorizationDeniedError("Unknown action " + action)
	}
	if rankOf(actor.Roles) < required {
		return apperror.NewAuthorizationDeniedError("Insufficient role for " + action)
	}
	return nil
}

// Authorize allows a mutation when the actor owns the receipt, or consumes a
// valid single-use override grant for it. Returns the authorizer id when an
// override was used so the audit entry can record both parties.
func (s *GuardService) Authorize(ctx context.Context, receipt *entity.Receipt, actor Actor, overrideToken string) (*uuid.UUID, error) {
	if s.CanModify(receipt, actor.ID) {
		return nil, nil
	}

	if overrideToken == "" {
		return nil, apperror.NewAuthorizationDeniedError("Receipt belongs to another user")
	}

	grant, err := s.grants.Consume(ctx, overrideToken)
	if err != nil {
		return nil, err
	}
	if grant == nil || grant.ReceiptID != receipt.ID || grant.RequestedBy != actor.ID {
		return nil, apperror.NewAuthorizationDeniedError("Override grant is invalid, expired or already used")
	}

	return &grant.AuthorizedBy, nil
}

// RequestOverride validates the authorizer's credentials and rank, then
// issues a single-use grant. Both user ids are audited whether or not the
// request succeeds.
func (s *GuardService) RequestOverride(ctx context.Context, receipt *entity.Receipt, requestingUserID uuid.UUID, action, authorizerEmail, authorizerPassword string) (*entity.OverrideGrant, error) {
	authorizer, err := s.users.GetByEmail(ctx, authorizerEmail)
	if err != nil {
		return nil, err
	}

	deny := func(reason string) (*entity.OverrideGrant, error) {
		var authorizedBy *uuid.UUID
		if authorizer != nil {
			authorizedBy = &authorizer.ID
		}
		s.audit.Record(ctx, RecordOptions{
			Actor:        requestingUserID,
			AuthorizedBy: authorizedBy,
			Action:       enum.AuditActionOverrideDeny,
			EntityType:   "receipt",
			EntityID:     receipt.ID,
			Reason:       reason,
		})
		return nil, apperror.NewAuthorizationDeniedError(reason)
	}

	if authorizer == nil {
		return deny("Authorizer not found")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(authorizer.Password), []byte(authorizerPassword)); err != nil {
		return deny("Invalid authorizer credentials")
	}

	required, ok := actionRanks[action]
	if !ok {
		return deny("Unknown action " + action)
	}
	if rankOf(authorizer.RoleNames()) <= required {
		return deny("Authorizer rank is not above the action's requirement")
	}

	grant := &entity.OverrideGrant{
		Token:        strings.ReplaceAll(uuid.New().String()+uuid.New().String(), "-", ""),
		ReceiptID:    receipt.ID,
		Action:       action,
		RequestedBy:  requestingUserID,
		AuthorizedBy: authorizer.ID,
		ExpiresAt:    time.Now().Add(overrideGrantTTL),
	}
	if err := s.grants.Create(ctx, grant); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, RecordOptions{
		Actor:        requestingUserID,
		AuthorizedBy: &authorizer.ID,
		Action:       enum.AuditActionOverrideGrant,
		EntityType:   "receipt",
		EntityID:     receipt.ID,
		After:        grant,
	})

	return grant, nil
}
