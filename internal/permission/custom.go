package permission

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CustomPermissions narrows or widens an organization member's role. A nil
// field means "no override"; unknown keys are rejected on decode.
type CustomPermissions struct {
	ViewSpace          *bool `json:"view_space,omitempty"`
	CreateSpace        *bool `json:"create_space,omitempty"`
	ManageSpace        *bool `json:"manage_space,omitempty"`
	DeleteSpace        *bool `json:"delete_space,omitempty"`
	CreateCabinet      *bool `json:"create_cabinet,omitempty"`
	ManageCabinet      *bool `json:"manage_cabinet,omitempty"`
	DeleteCabinet      *bool `json:"delete_cabinet,omitempty"`
	ReadRecords        *bool `json:"read_records,omitempty"`
	CreateRecords      *bool `json:"create_records,omitempty"`
	UpdateRecords      *bool `json:"update_records,omitempty"`
	DeleteRecords      *bool `json:"delete_records,omitempty"`
	DownloadFiles      *bool `json:"download_files,omitempty"`
	ExportTables       *bool `json:"export_tables,omitempty"`
	ReadLetters        *bool `json:"read_letters,omitempty"`
	CreateLetters      *bool `json:"create_letters,omitempty"`
	ManageMembers      *bool `json:"manage_members,omitempty"`
	ReassignApprovals  *bool `json:"reassign_approvals,omitempty"`
	RestoreDeleted     *bool `json:"restore_deleted,omitempty"`
	OverridePending    *bool `json:"override_pending,omitempty"`
	PurgeDeleted       *bool `json:"purge_deleted,omitempty"`
	ManageOrganization *bool `json:"manage_organization,omitempty"`
}

func (c *CustomPermissions) field(capability Capability) **bool {
	switch capability {
	case CapViewSpace:
		return &c.ViewSpace
	case CapCreateSpace:
		return &c.CreateSpace
	case CapManageSpace:
		return &c.ManageSpace
	case CapDeleteSpace:
		return &c.DeleteSpace
	case CapCreateCabinet:
		return &c.CreateCabinet
	case CapManageCabinet:
		return &c.ManageCabinet
	case CapDeleteCabinet:
		return &c.DeleteCabinet
	case CapReadRecords:
		return &c.ReadRecords
	case CapCreateRecords:
		return &c.CreateRecords
	case CapUpdateRecords:
		return &c.UpdateRecords
	case CapDeleteRecords:
		return &c.DeleteRecords
	case CapDownloadFiles:
		return &c.DownloadFiles
	case CapExportTables:
		return &c.ExportTables
	case CapReadLetters:
		return &c.ReadLetters
	case CapCreateLetters:
		return &c.CreateLetters
	case CapManageMembers:
		return &c.ManageMembers
	case CapReassignApprovals:
		return &c.ReassignApprovals
	case CapRestoreDeleted:
		return &c.RestoreDeleted
	case CapOverridePending:
		return &c.OverridePending
	case CapPurgeDeleted:
		return &c.PurgeDeleted
	case CapManageOrganization:
		return &c.ManageOrganization
	}
	return nil
}

// Lookup returns the override for capability and whether one is set.
func (c CustomPermissions) Lookup(capability Capability) (value bool, ok bool) {
	f := c.field(capability)
	if f == nil || *f == nil {
		return false, false
	}
	return **f, true
}

// Set records an explicit override. Unknown capabilities are an error.
func (c *CustomPermissions) Set(capability Capability, value bool) error {
	f := c.field(capability)
	if f == nil {
		return fmt.Errorf("unknown capability %q", capability)
	}
	v := value
	*f = &v
	return nil
}

// IsZero reports whether no override is set.
func (c CustomPermissions) IsZero() bool {
	for _, capability := range AllCapabilities {
		if _, ok := c.Lookup(capability); ok {
			return false
		}
	}
	return true
}

func (c *CustomPermissions) UnmarshalJSON(data []byte) error {
	type plain CustomPermissions
	var out plain
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return fmt.Errorf("custom permissions: %w", err)
	}
	*c = CustomPermissions(out)
	return nil
}
