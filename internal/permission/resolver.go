package permission

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/docflow/internal"
)

type PrincipalType string

const (
	PrincipalUser  PrincipalType = "user"
	PrincipalAdmin PrincipalType = "admin"
)

// Principal is the authenticated actor behind a request.
type Principal struct {
	ID   int64         `json:"id"`
	Type PrincipalType `json:"type"`
}

func (p Principal) IsAdmin() bool {
	return p.Type == PrincipalAdmin
}

type Membership struct {
	OrganizationID int64             `json:"organization_id"`
	UserID         int64             `json:"user_id"`
	Role           Role              `json:"role"`
	Status         MembershipStatus  `json:"status"`
	Custom         CustomPermissions `json:"custom_permissions"`
}

func (m *Membership) Active() bool {
	return m != nil && m.Status == MembershipActive
}

type ResourceKind string

const (
	KindOrganization ResourceKind = "organization"
	KindSpace        ResourceKind = "space"
	KindCabinet      ResourceKind = "cabinet"
	KindRecord       ResourceKind = "record"
	KindLetter       ResourceKind = "letter"
)

// Target identifies the resource an action is aimed at and the scope it lives in.
type Target struct {
	Kind           ResourceKind
	ID             int64
	OrganizationID int64
	CabinetID      int64
	OwnerID        int64
	CreatorID      int64
	// Public marks resources with an anonymous read view.
	Public bool
}

type DenyReason string

const (
	ReasonInsufficientRole DenyReason = "insufficient_role"
	ReasonNotAMember       DenyReason = "not_a_member"
	ReasonScopeMismatch    DenyReason = "resource_scope_mismatch"
)

// Decision is the resolver's answer. Source names the rule that decided it.
type Decision struct {
	Allowed bool       `json:"allowed"`
	Reason  DenyReason `json:"reason,omitempty"`
	Source  string     `json:"source"`
}

func allow(source string) Decision {
	return Decision{Allowed: true, Source: source}
}

func deny(reason DenyReason, source string) Decision {
	return Decision{Allowed: false, Reason: reason, Source: source}
}

// Input is everything Evaluate needs. Membership and Cabinet are nil when absent.
type Input struct {
	Principal  Principal
	Membership *Membership
	Cabinet    *CabinetPermission
	Target     Target
	Capability Capability
}

// Evaluate answers whether the principal may exercise the capability on the
// target. It reads nothing but its input.
func Evaluate(in Input) Decision {
	if !in.Capability.Valid() {
		return deny(ReasonInsufficientRole, "unknown_capability")
	}
	if in.Target.OrganizationID == 0 {
		return deny(ReasonScopeMismatch, "scope")
	}

	membership := in.Membership
	if membership == nil && in.Principal.IsAdmin() {
		membership = &Membership{
			OrganizationID: in.Target.OrganizationID,
			UserID:         in.Principal.ID,
			Role:           RoleSystemAdmin,
			Status:         MembershipActive,
		}
	}

	if membership != nil && membership.OrganizationID != in.Target.OrganizationID {
		return deny(ReasonScopeMismatch, "scope")
	}
	if !membership.Active() {
		if in.Target.Public && in.Capability == CapReadLetters {
			return allow("public")
		}
		return deny(ReasonNotAMember, "membership")
	}

	if in.Capability.IdentityBased() && in.Principal.ID != 0 &&
		(in.Principal.ID == in.Target.OwnerID || in.Principal.ID == in.Target.CreatorID) {
		return allow("identity")
	}

	if in.Cabinet != nil && in.Target.CabinetID != 0 {
		if in.Cabinet.CabinetID != in.Target.CabinetID || in.Cabinet.UserID != in.Principal.ID {
			return deny(ReasonScopeMismatch, "cabinet")
		}
		if v, ok := in.Cabinet.Lookup(in.Capability); ok {
			if v {
				return allow("cabinet")
			}
			return deny(ReasonInsufficientRole, "cabinet")
		}
	}

	if v, ok := membership.Custom.Lookup(in.Capability); ok {
		if v {
			return allow("custom")
		}
		return deny(ReasonInsufficientRole, "custom")
	}

	if RoleGrants(membership.Role, in.Capability) {
		return allow("role")
	}
	return deny(ReasonInsufficientRole, "role")
}

// Effective lists the capabilities a member holds in an organization, and
// inside a cabinet when cabinet is non-nil. Identity passes are not included.
func Effective(principal Principal, membership *Membership, cabinet *CabinetPermission) []Capability {
	if membership == nil {
		return nil
	}
	target := Target{OrganizationID: membership.OrganizationID}
	if cabinet != nil {
		target.CabinetID = cabinet.CabinetID
	}
	var out []Capability
	for _, c := range AllCapabilities {
		d := Evaluate(Input{Principal: principal, Membership: membership, Cabinet: cabinet, Target: target, Capability: c})
		if d.Allowed {
			out = append(out, c)
		}
	}
	return out
}

// Store is the read side the resolver consults on every call.
type Store interface {
	Membership(ctx context.Context, organizationID, userID int64) (*Membership, error)
	CabinetPermission(ctx context.Context, cabinetID, userID int64) (*CabinetPermission, error)
}

// Resolver loads current persisted state and evaluates it. It keeps no cache.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

func NewResolver(store Store, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

func (r *Resolver) Resolve(ctx context.Context, principal Principal, target Target, capability Capability) (Decision, error) {
	var membership *Membership
	if principal.ID != 0 && target.OrganizationID != 0 {
		m, err := r.store.Membership(ctx, target.OrganizationID, principal.ID)
		if err != nil {
			return Decision{}, fmt.Errorf("load membership: %w", err)
		}
		membership = m
	}

	var cabinet *CabinetPermission
	if principal.ID != 0 && target.CabinetID != 0 && CabinetScoped(capability) {
		cp, err := r.store.CabinetPermission(ctx, target.CabinetID, principal.ID)
		if err != nil {
			return Decision{}, fmt.Errorf("load cabinet permission: %w", err)
		}
		cabinet = cp
	}

	return Evaluate(Input{
		Principal:  principal,
		Membership: membership,
		Cabinet:    cabinet,
		Target:     target,
		Capability: capability,
	}), nil
}

// Authorize is Resolve for callers that only care about a go/no-go, returning
// a NotAuthorized AppError that carries the deny reason.
func (r *Resolver) Authorize(ctx context.Context, principal Principal, target Target, capability Capability) error {
	decision, err := r.Resolve(ctx, principal, target, capability)
	if err != nil {
		r.logger.Error("permission resolution failed",
			"error", err,
			"principal_id", principal.ID,
			"capability", capability,
			"target_kind", target.Kind,
			"target_id", target.ID)
		return internal.NewInternalError("failed to resolve permissions", err)
	}
	if decision.Allowed {
		return nil
	}

	r.logger.Warn("permission denied",
		"principal_id", principal.ID,
		"capability", capability,
		"target_kind", target.Kind,
		"target_id", target.ID,
		"reason", decision.Reason,
		"source", decision.Source)

	return internal.ErrNotAuthorized.WithDetails(map[string]string{
		"reason":     string(decision.Reason),
		"capability": string(capability),
	})
}

// ActiveMember fails unless the principal holds an active membership in the
// organization. Admins without a membership pass, as they do in Evaluate.
func (r *Resolver) ActiveMember(ctx context.Context, principal Principal, organizationID int64) error {
	if principal.ID == 0 || organizationID == 0 {
		return internal.ErrNotAuthorized.WithDetails(map[string]string{"reason": string(ReasonNotAMember)})
	}
	m, err := r.store.Membership(ctx, organizationID, principal.ID)
	if err != nil {
		r.logger.Error("membership lookup failed", "error", err, "principal_id", principal.ID, "organization_id", organizationID)
		return internal.NewInternalError("failed to resolve membership", err)
	}
	if m.Active() || (m == nil && principal.IsAdmin()) {
		return nil
	}
	r.logger.Warn("inactive member refused", "principal_id", principal.ID, "organization_id", organizationID)
	return internal.ErrNotAuthorized.WithDetails(map[string]string{"reason": string(ReasonNotAMember)})
}

// Check is Authorize without the error wrapping, for callers that branch on the answer.
func (r *Resolver) Check(ctx context.Context, principal Principal, target Target, capability Capability) bool {
	decision, err := r.Resolve(ctx, principal, target, capability)
	return err == nil && decision.Allowed
}
