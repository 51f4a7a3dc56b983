package authz

// Protected resources. The string values are stable identifiers persisted in
// role and override rows; renames go through the alias table, never here.
const (
	ResourcePets         Resource = "pets"
	ResourceClients      Resource = "clients"
	ResourceAppointments Resource = "appointments"
	ResourceLabOrders    Resource = "lab_orders"
	ResourceTreatments   Resource = "treatments"
	ResourceVaccinations Resource = "vaccinations"
	ResourceBilling      Resource = "billing"
	ResourceInventory    Resource = "inventory"
	ResourceStaff        Resource = "staff"
	ResourceReports      Resource = "reports"
	ResourcePractices    Resource = "practices"
	ResourceRoles        Resource = "roles"
	ResourceUsers        Resource = "users"
	ResourceAuditLogs    Resource = "audit_logs"
)

// Catalog categories, used by the UI to group permissions. Not behaviorally
// significant.
const (
	CategoryPatientCare    = "Patient Care"
	CategoryFrontDesk      = "Front Desk"
	CategoryFinance        = "Finance"
	CategoryAdministration = "Administration"
)

// PermissionMeta describes one catalog entry.
type PermissionMeta struct {
	Resource    Resource `json:"resource"`
	Action      Action   `json:"action"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
}

var crudActions = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}

func catalogCRUD(resource Resource, category, noun string) []PermissionMeta {
	verbs := map[Action]string{
		ActionCreate: "Create",
		ActionRead:   "View",
		ActionUpdate: "Edit",
		ActionDelete: "Delete",
	}
	entries := make([]PermissionMeta, 0, len(crudActions))
	for _, action := range crudActions {
		entries = append(entries, PermissionMeta{
			Resource:    resource,
			Action:      action,
			Category:    category,
			Description: verbs[action] + " " + noun,
		})
	}
	return entries
}

// permissionCatalog is the static (resource, action) → metadata table. Pure
// lookup data; it carries no grant decisions.
var permissionCatalog = buildCatalog()

func buildCatalog() map[string]PermissionMeta {
	var entries []PermissionMeta
	entries = append(entries, catalogCRUD(ResourcePets, CategoryPatientCare, "pet records")...)
	entries = append(entries, catalogCRUD(ResourceTreatments, CategoryPatientCare, "treatment plans")...)
	entries = append(entries, catalogCRUD(ResourceVaccinations, CategoryPatientCare, "vaccination records")...)
	entries = append(entries, catalogCRUD(ResourceLabOrders, CategoryPatientCare, "lab orders")...)
	entries = append(entries, catalogCRUD(ResourceClients, CategoryFrontDesk, "client records")...)
	entries = append(entries, catalogCRUD(ResourceAppointments, CategoryFrontDesk, "appointments")...)
	entries = append(entries, catalogCRUD(ResourceBilling, CategoryFinance, "invoices and payments")...)
	entries = append(entries, catalogCRUD(ResourceInventory, CategoryAdministration, "inventory items")...)
	entries = append(entries, catalogCRUD(ResourceStaff, CategoryAdministration, "staff records")...)
	entries = append(entries, catalogCRUD(ResourceUsers, CategoryAdministration, "user accounts")...)

	entries = append(entries,
		PermissionMeta{ResourceLabOrders, ActionApprove, CategoryPatientCare, "Approve lab orders"},
		PermissionMeta{ResourceLabOrders, ActionReject, CategoryPatientCare, "Reject lab orders"},
		PermissionMeta{ResourceAppointments, ActionAssign, CategoryFrontDesk, "Assign appointments to staff"},
		PermissionMeta{ResourceAppointments, ActionUnassign, CategoryFrontDesk, "Unassign appointments from staff"},
		PermissionMeta{ResourceBilling, ActionApprove, CategoryFinance, "Approve billing adjustments"},
		PermissionMeta{ResourceBilling, ActionExport, CategoryFinance, "Export billing data"},
		PermissionMeta{ResourceReports, ActionRead, CategoryAdministration, "View practice reports"},
		PermissionMeta{ResourceReports, ActionExport, CategoryAdministration, "Export practice reports"},
		PermissionMeta{ResourceInventory, ActionImport, CategoryAdministration, "Import inventory counts"},
		PermissionMeta{ResourcePets, ActionArchive, CategoryPatientCare, "Archive pet records"},
		PermissionMeta{ResourcePets, ActionRestore, CategoryPatientCare, "Restore archived pet records"},
		PermissionMeta{ResourcePractices, ActionManage, CategoryAdministration, "Manage practice settings"},
		PermissionMeta{ResourceRoles, ActionManage, CategoryAdministration, "Manage roles and permissions"},
		PermissionMeta{ResourceStaff, ActionManage, CategoryAdministration, "Manage staff scheduling"},
		PermissionMeta{ResourceAuditLogs, ActionRead, CategoryAdministration, "View audit logs"},
		PermissionMeta{ResourceAuditLogs, ActionExport, CategoryAdministration, "Export audit logs"},
	)

	catalog := make(map[string]PermissionMeta, len(entries))
	for _, e := range entries {
		catalog[PermissionKey(e.Resource, e.Action)] = e
	}
	return catalog
}

// LookupPermission returns catalog metadata for a (resource, action) pair.
func LookupPermission(resource Resource, action Action) (PermissionMeta, bool) {
	meta, ok := permissionCatalog[PermissionKey(resource, action)]
	return meta, ok
}

// CatalogEntries returns every catalog entry, unordered. The permissions
// listing endpoint sorts for presentation.
func CatalogEntries() []PermissionMeta {
	entries := make([]PermissionMeta, 0, len(permissionCatalog))
	for _, meta := range permissionCatalog {
		entries = append(entries, meta)
	}
	return entries
}
