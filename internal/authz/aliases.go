package authz

// resourceAliases maps legacy or alternate resource names onto their
// canonical equivalents. This is a closed, hand-maintained list, not a
// synonym engine; lookups never chain through a second alias.
var resourceAliases = map[Resource][]Resource{
	"checklists": {ResourceTreatments},
	"patients":   {ResourcePets},
	"owners":     {ResourceClients},
	"invoices":   {ResourceBilling},
	"schedule":   {ResourceAppointments},
}

// candidateResources returns the resource itself plus any canonical names it
// aliases to, in deterministic match order.
func candidateResources(resource Resource) []Resource {
	candidates := []Resource{resource}
	return append(candidates, resourceAliases[resource]...)
}
