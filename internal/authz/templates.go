package authz

// Built-in role names. These exist in every deployment regardless of what
// the role store returns and are the fallback when dynamic data is
// unavailable.
const (
	RoleSuperAdmin    = "SUPER_ADMIN"
	RolePracticeAdmin = "PRACTICE_ADMIN"
	RoleVeterinarian  = "VETERINARIAN"
	RoleVetTech       = "VET_TECH"
	RoleReceptionist  = "RECEPTIONIST"
	RoleClient        = "CLIENT"
)

// ownershipBypassRoles can act on resources they do not own. Ownership is a
// floor for everyone else.
var ownershipBypassRoles = map[string]struct{}{
	RoleSuperAdmin:    {},
	RolePracticeAdmin: {},
}

// BypassesOwnership reports whether the named role skips ownership checks.
func BypassesOwnership(roleName string) bool {
	_, ok := ownershipBypassRoles[roleName]
	return ok
}

func grant(resource Resource, action Action, conditions ...Condition) Permission {
	return Permission{Resource: resource, Action: action, Granted: true, Conditions: conditions}
}

func deny(resource Resource, action Action) Permission {
	return Permission{Resource: resource, Action: action, Granted: false}
}

func grantCRUD(resource Resource) []Permission {
	return []Permission{
		grant(resource, ActionCreate),
		grant(resource, ActionRead),
		grant(resource, ActionUpdate),
		grant(resource, ActionDelete),
	}
}

// ownedBy restricts a permission to rows whose owner field matches the
// requesting user, via substitution at evaluation time.
func ownedBy(field string) Condition {
	return Condition{Field: field, Operator: OpEquals, Value: "${userId}"}
}

// roleTemplates are the static role-to-permission tables. SUPER_ADMIN keeps
// an empty permission list: the resolver short-circuits on the name and the
// template exists so the role is resolvable and assignable like any other.
var roleTemplates = buildTemplates()

func buildTemplates() map[string]Role {
	templates := []Role{
		{
			ID:            -1,
			Name:          RoleSuperAdmin,
			SystemDefined: true,
		},
		{
			ID:            -2,
			Name:          RolePracticeAdmin,
			SystemDefined: true,
			Permissions: concatPermissions(
				grantCRUD(ResourcePets),
				grantCRUD(ResourceClients),
				grantCRUD(ResourceAppointments),
				grantCRUD(ResourceLabOrders),
				grantCRUD(ResourceTreatments),
				grantCRUD(ResourceVaccinations),
				grantCRUD(ResourceBilling),
				grantCRUD(ResourceInventory),
				grantCRUD(ResourceStaff),
				grantCRUD(ResourceUsers),
				[]Permission{
					grant(ResourceLabOrders, ActionApprove),
					grant(ResourceLabOrders, ActionReject),
					grant(ResourceAppointments, ActionAssign),
					grant(ResourceAppointments, ActionUnassign),
					grant(ResourceBilling, ActionApprove),
					grant(ResourceBilling, ActionExport),
					grant(ResourceReports, ActionRead),
					grant(ResourceReports, ActionExport),
					grant(ResourceInventory, ActionImport),
					grant(ResourcePets, ActionArchive),
					grant(ResourcePets, ActionRestore),
					grant(ResourcePractices, ActionManage),
					grant(ResourceRoles, ActionManage),
					grant(ResourceStaff, ActionManage),
					grant(ResourceAuditLogs, ActionRead),
					grant(ResourceAuditLogs, ActionExport),
				},
			),
		},
		{
			ID:            -3,
			Name:          RoleVeterinarian,
			SystemDefined: true,
			Permissions: concatPermissions(
				grantCRUD(ResourcePets),
				grantCRUD(ResourceTreatments),
				grantCRUD(ResourceVaccinations),
				grantCRUD(ResourceLabOrders),
				[]Permission{
					grant(ResourceClients, ActionRead),
					grant(ResourceAppointments, ActionRead),
					grant(ResourceAppointments, ActionUpdate),
					grant(ResourceLabOrders, ActionApprove),
					grant(ResourceLabOrders, ActionReject),
					grant(ResourcePets, ActionArchive),
					grant(ResourceBilling, ActionRead),
					grant(ResourceReports, ActionRead),
					deny(ResourceBilling, ActionDelete),
				},
			),
		},
		{
			ID:            -4,
			Name:          RoleVetTech,
			SystemDefined: true,
			Permissions: []Permission{
				grant(ResourcePets, ActionRead),
				grant(ResourcePets, ActionUpdate),
				grant(ResourceTreatments, ActionRead),
				grant(ResourceTreatments, ActionUpdate),
				grant(ResourceVaccinations, ActionCreate),
				grant(ResourceVaccinations, ActionRead),
				grant(ResourceLabOrders, ActionCreate),
				grant(ResourceLabOrders, ActionRead),
				grant(ResourceAppointments, ActionRead),
				grant(ResourceClients, ActionRead),
			},
		},
		{
			ID:            -5,
			Name:          RoleReceptionist,
			SystemDefined: true,
			Permissions: concatPermissions(
				grantCRUD(ResourceClients),
				grantCRUD(ResourceAppointments),
				[]Permission{
					grant(ResourcePets, ActionCreate),
					grant(ResourcePets, ActionRead),
					grant(ResourcePets, ActionUpdate),
					grant(ResourceAppointments, ActionAssign),
					grant(ResourceAppointments, ActionUnassign),
					grant(ResourceBilling, ActionCreate),
					grant(ResourceBilling, ActionRead),
					grant(ResourceLabOrders, ActionRead),
				},
			),
		},
		{
			ID:            -6,
			Name:          RoleClient,
			SystemDefined: true,
			Permissions: []Permission{
				grant(ResourcePets, ActionRead, ownedBy("ownerId")),
				grant(ResourcePets, ActionUpdate, ownedBy("ownerId")),
				grant(ResourceAppointments, ActionCreate),
				grant(ResourceAppointments, ActionRead, ownedBy("clientId")),
				grant(ResourceAppointments, ActionUpdate, ownedBy("clientId")),
				grant(ResourceVaccinations, ActionRead, ownedBy("ownerId")),
				grant(ResourceBilling, ActionRead, ownedBy("clientId")),
			},
		},
	}

	byName := make(map[string]Role, len(templates))
	for _, role := range templates {
		byName[role.Name] = role
	}
	return byName
}

func concatPermissions(groups ...[]Permission) []Permission {
	var out []Permission
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// TemplateRole looks up a built-in role by name.
func TemplateRole(name string) (Role, bool) {
	role, ok := roleTemplates[name]
	return role, ok
}

// TemplateRoles returns all built-in roles.
func TemplateRoles() []Role {
	roles := make([]Role, 0, len(roleTemplates))
	for _, name := range []string{RoleSuperAdmin, RolePracticeAdmin, RoleVeterinarian, RoleVetTech, RoleReceptionist, RoleClient} {
		roles = append(roles, roleTemplates[name])
	}
	return roles
}
