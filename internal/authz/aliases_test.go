package authz

import "testing"

func TestCandidateResources(t *testing.T) {
	got := candidateResources("checklists")
	if len(got) != 2 || got[0] != "checklists" || got[1] != ResourceTreatments {
		t.Fatalf("candidates = %v", got)
	}

	// Canonical names have no aliases and only match themselves.
	if got := candidateResources(ResourceTreatments); len(got) != 1 {
		t.Fatalf("canonical resource must not expand, got %v", got)
	}
}

func TestAliasesPointAtCanonicalResources(t *testing.T) {
	canonical := map[Resource]struct{}{}
	for _, entries := range permissionCatalog {
		canonical[entries.Resource] = struct{}{}
	}
	for alias, targets := range resourceAliases {
		if _, ok := canonical[alias]; ok {
			t.Fatalf("alias %q collides with a canonical resource", alias)
		}
		for _, target := range targets {
			if _, ok := canonical[target]; !ok {
				t.Fatalf("alias %q points at unknown resource %q", alias, target)
			}
			if _, chained := resourceAliases[target]; chained {
				t.Fatalf("alias %q chains through %q", alias, target)
			}
		}
	}
}
