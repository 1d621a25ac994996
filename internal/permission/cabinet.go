package permission

// CabinetPermission is a per-cabinet capability bag. When present it is the
// final word for the cabinet-scoped capabilities of that cabinet only.
type CabinetPermission struct {
	CabinetID     int64 `json:"cabinet_id"`
	UserID        int64 `json:"user_id"`
	ReadRecords   bool  `json:"read_records"`
	CreateRecords bool  `json:"create_records"`
	UpdateRecords bool  `json:"update_records"`
	DeleteRecords bool  `json:"delete_records"`
	ManageCabinet bool  `json:"manage_cabinet"`
	DownloadFiles bool  `json:"download_files"`
	ExportTables  bool  `json:"export_tables"`
}

// Lookup returns the cabinet-level answer for capability, or ok=false when
// the capability is not cabinet-scoped.
func (p CabinetPermission) Lookup(capability Capability) (value bool, ok bool) {
	switch capability {
	case CapReadRecords:
		return p.ReadRecords, true
	case CapCreateRecords:
		return p.CreateRecords, true
	case CapUpdateRecords:
		return p.UpdateRecords, true
	case CapDeleteRecords:
		return p.DeleteRecords, true
	case CapManageCabinet:
		return p.ManageCabinet, true
	case CapDownloadFiles:
		return p.DownloadFiles, true
	case CapExportTables:
		return p.ExportTables, true
	}
	return false, false
}

// CabinetScoped reports whether a CabinetPermission can decide capability.
func CabinetScoped(capability Capability) bool {
	_, ok := CabinetPermission{}.Lookup(capability)
	return ok
}
