package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/frahmantamala/docflow/internal/permission"
)

// Store is the sqlx read side of the permission resolver.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type membershipRow struct {
	OrganizationID    int64  `db:"organization_id"`
	UserID            int64  `db:"user_id"`
	Role              string `db:"role"`
	Status            string `db:"status"`
	CustomPermissions []byte `db:"custom_permissions"`
}

// The active row wins when a user has historical memberships.
const membershipQuery = `
SELECT organization_id, user_id, role, status, custom_permissions
FROM organization_memberships
WHERE organization_id = ? AND user_id = ?
ORDER BY CASE WHEN status = 'active' THEN 0 ELSE 1 END, id DESC
LIMIT 1`

func (s *Store) Membership(ctx context.Context, organizationID, userID int64) (*permission.Membership, error) {
	var row membershipRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(membershipQuery), organizationID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query membership: %w", err)
	}

	role, err := permission.ParseRole(row.Role)
	if err != nil {
		return nil, fmt.Errorf("membership %d/%d: %w", organizationID, userID, err)
	}
	m := &permission.Membership{
		OrganizationID: row.OrganizationID,
		UserID:         row.UserID,
		Role:           role,
		Status:         permission.MembershipStatus(row.Status),
	}
	if len(row.CustomPermissions) > 0 && string(row.CustomPermissions) != "null" {
		if err := json.Unmarshal(row.CustomPermissions, &m.Custom); err != nil {
			return nil, fmt.Errorf("membership %d/%d: %w", organizationID, userID, err)
		}
	}
	return m, nil
}

const cabinetPermissionQuery = `
SELECT cabinet_id, user_id, read_records, create_records, update_records, delete_records,
       manage_cabinet, download_files, export_tables
FROM cabinet_member_permissions
WHERE cabinet_id = ? AND user_id = ?`

func (s *Store) CabinetPermission(ctx context.Context, cabinetID, userID int64) (*permission.CabinetPermission, error) {
	var row struct {
		CabinetID     int64 `db:"cabinet_id"`
		UserID        int64 `db:"user_id"`
		ReadRecords   bool  `db:"read_records"`
		CreateRecords bool  `db:"create_records"`
		UpdateRecords bool  `db:"update_records"`
		DeleteRecords bool  `db:"delete_records"`
		ManageCabinet bool  `db:"manage_cabinet"`
		DownloadFiles bool  `db:"download_files"`
		ExportTables  bool  `db:"export_tables"`
	}
	err := s.db.GetContext(ctx, &row, s.db.Rebind(cabinetPermissionQuery), cabinetID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query cabinet permission: %w", err)
	}
	cp := permission.CabinetPermission(row)
	return &cp, nil
}
