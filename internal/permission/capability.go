package permission

// Capability is a named boolean permission. The set is closed.
type Capability string

const (
	CapViewSpace          Capability = "view_space"
	CapCreateSpace        Capability = "create_space"
	CapManageSpace        Capability = "manage_space"
	CapDeleteSpace        Capability = "delete_space"
	CapCreateCabinet      Capability = "create_cabinet"
	CapManageCabinet      Capability = "manage_cabinet"
	CapDeleteCabinet      Capability = "delete_cabinet"
	CapReadRecords        Capability = "read_records"
	CapCreateRecords      Capability = "create_records"
	CapUpdateRecords      Capability = "update_records"
	CapDeleteRecords      Capability = "delete_records"
	CapDownloadFiles      Capability = "download_files"
	CapExportTables       Capability = "export_tables"
	CapReadLetters        Capability = "read_letters"
	CapCreateLetters      Capability = "create_letters"
	CapManageMembers      Capability = "manage_members"
	CapReassignApprovals  Capability = "reassign_approvals"
	CapRestoreDeleted     Capability = "restore_deleted"
	CapOverridePending    Capability = "override_pending"
	CapPurgeDeleted       Capability = "purge_deleted"
	CapManageOrganization Capability = "manage_organization"
)

// AllCapabilities lists every capability in display order.
var AllCapabilities = []Capability{
	CapViewSpace, CapCreateSpace, CapManageSpace, CapDeleteSpace,
	CapCreateCabinet, CapManageCabinet, CapDeleteCabinet,
	CapReadRecords, CapCreateRecords, CapUpdateRecords, CapDeleteRecords,
	CapDownloadFiles, CapExportTables,
	CapReadLetters, CapCreateLetters,
	CapManageMembers, CapReassignApprovals,
	CapRestoreDeleted, CapOverridePending, CapPurgeDeleted,
	CapManageOrganization,
}

// tierGrants is the only place role ordering meets capabilities. Each tier
// adds to everything granted below it.
var tierGrants = []struct {
	role Role
	caps []Capability
}{
	{RoleGuest, []Capability{CapViewSpace, CapReadLetters}},
	{RoleMemberRead, []Capability{CapReadRecords, CapDownloadFiles}},
	{RoleMemberFull, []Capability{CapCreateSpace, CapCreateCabinet, CapCreateRecords, CapUpdateRecords, CapExportTables, CapCreateLetters}},
	{RoleCoOwner, []Capability{CapManageSpace, CapManageCabinet, CapDeleteCabinet, CapDeleteRecords, CapManageMembers, CapReassignApprovals}},
	{RoleSystemAdmin, []Capability{CapDeleteSpace, CapRestoreDeleted}},
	{RoleSuperUser, []Capability{CapOverridePending, CapPurgeDeleted}},
	{RoleOwner, []Capability{CapManageOrganization}},
}

var roleCapabilities = buildRoleCapabilities()

func buildRoleCapabilities() map[Role]map[Capability]bool {
	out := make(map[Role]map[Capability]bool, len(tierGrants))
	acc := make(map[Capability]bool)
	for _, tier := range tierGrants {
		for _, c := range tier.caps {
			acc[c] = true
		}
		set := make(map[Capability]bool, len(acc))
		for c := range acc {
			set[c] = true
		}
		out[tier.role] = set
	}
	return out
}

// RoleGrants reports whether role grants capability before any overrides.
func RoleGrants(role Role, capability Capability) bool {
	return roleCapabilities[role][capability]
}

// MinimumRole returns the lowest role that grants capability, or 0 when none does.
func MinimumRole(capability Capability) Role {
	for _, tier := range tierGrants {
		if roleCapabilities[tier.role][capability] {
			return tier.role
		}
	}
	return 0
}

// identityCapabilities pass for the resource owner or creator regardless of role.
var identityCapabilities = map[Capability]bool{
	CapManageSpace:    true,
	CapDeleteSpace:    true,
	CapManageCabinet:  true,
	CapDeleteCabinet:  true,
	CapUpdateRecords:  true,
	CapDeleteRecords:  true,
	CapRestoreDeleted: true,
}

func (c Capability) IdentityBased() bool {
	return identityCapabilities[c]
}

func (c Capability) Valid() bool {
	for _, known := range AllCapabilities {
		if known == c {
			return true
		}
	}
	return false
}
