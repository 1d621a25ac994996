package space

import (
	"time"

	"gorm.io/gorm"

	spaceDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/space"
	workflowDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/workflow"
	"github.com/frahmantamala/docflow/internal/permission"
	"github.com/frahmantamala/docflow/internal/workflow"
)

type Space struct {
	ID              int64           `json:"id"`
	OrganizationID  int64           `json:"organization_id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	Status          workflow.Status `json:"status"`
	CreatorID       int64           `json:"creator_id"`
	ApproverID      *int64          `json:"approver_id,omitempty"`
	RejectionReason *string         `json:"rejection_reason,omitempty"`
	Version         int64           `json:"version"`
	SubmittedAt     *time.Time      `json:"submitted_at,omitempty"`
	DecidedAt       *time.Time      `json:"decided_at,omitempty"`
	DeletedAt       *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (s *Space) Target() permission.Target {
	return permission.Target{
		Kind:           permission.KindSpace,
		ID:             s.ID,
		OrganizationID: s.OrganizationID,
		CreatorID:      s.CreatorID,
	}
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationExpired  InvitationStatus = "expired"
	InvitationRevoked  InvitationStatus = "revoked"
)

type Invitation struct {
	ID          int64            `json:"id"`
	SpaceID     int64            `json:"space_id"`
	Email       string           `json:"email"`
	Role        permission.Role  `json:"role"`
	Token       string           `json:"-"`
	Status      InvitationStatus `json:"status"`
	InvitedBy   int64            `json:"invited_by"`
	ExpiresAt   time.Time        `json:"expires_at"`
	RespondedAt *time.Time       `json:"responded_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Expired reports whether a pending invitation has outlived its deadline.
func (i *Invitation) Expired(now time.Time) bool {
	return i.Status == InvitationPending && !now.Before(i.ExpiresAt)
}

func NewSpace(organizationID, creatorID int64, dto CreateSpaceDTO) *Space {
	return &Space{
		OrganizationID: organizationID,
		Name:           dto.Name,
		Description:    dto.Description,
		Status:         workflow.StatusDraft,
		CreatorID:      creatorID,
		ApproverID:     dto.ApproverID,
		Version:        1,
	}
}

func ToDataModel(s *Space) *spaceDatamodel.Space {
	row := &spaceDatamodel.Space{
		ID:             s.ID,
		OrganizationID: s.OrganizationID,
		Name:           s.Name,
		Description:    s.Description,
		ApprovalState: workflowDatamodel.ApprovalState{
			Status:          string(s.Status),
			CreatorID:       s.CreatorID,
			ApproverID:      s.ApproverID,
			RejectionReason: s.RejectionReason,
			SubmittedAt:     s.SubmittedAt,
			DecidedAt:       s.DecidedAt,
			Version:         s.Version,
		},
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if s.DeletedAt != nil {
		row.DeletedAt = gorm.DeletedAt{Time: *s.DeletedAt, Valid: true}
	}
	return row
}

func FromDataModel(row *spaceDatamodel.Space) *Space {
	s := &Space{
		ID:              row.ID,
		OrganizationID:  row.OrganizationID,
		Name:            row.Name,
		Description:     row.Description,
		Status:          workflow.Status(row.Status),
		CreatorID:       row.CreatorID,
		ApproverID:      row.ApproverID,
		RejectionReason: row.RejectionReason,
		Version:         row.Version,
		SubmittedAt:     row.SubmittedAt,
		DecidedAt:       row.DecidedAt,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	if row.DeletedAt.Valid {
		t := row.DeletedAt.Time
		s.DeletedAt = &t
	}
	return s
}

func InvitationToDataModel(i *Invitation) *spaceDatamodel.Invitation {
	return &spaceDatamodel.Invitation{
		ID:          i.ID,
		SpaceID:     i.SpaceID,
		Email:       i.Email,
		Role:        i.Role.String(),
		Token:       i.Token,
		Status:      string(i.Status),
		InvitedBy:   i.InvitedBy,
		ExpiresAt:   i.ExpiresAt,
		RespondedAt: i.RespondedAt,
		CreatedAt:   i.CreatedAt,
	}
}

func InvitationFromDataModel(row *spaceDatamodel.Invitation) *Invitation {
	role, _ := permission.ParseRole(row.Role)
	return &Invitation{
		ID:          row.ID,
		SpaceID:     row.SpaceID,
		Email:       row.Email,
		Role:        role,
		Token:       row.Token,
		Status:      InvitationStatus(row.Status),
		InvitedBy:   row.InvitedBy,
		ExpiresAt:   row.ExpiresAt,
		RespondedAt: row.RespondedAt,
		CreatedAt:   row.CreatedAt,
	}
}
