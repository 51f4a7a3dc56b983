package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/harborvet/harborvet/internal/authz"
)

// SimulateCLI answers what-if permission questions against the built-in
// role templates without touching any backing store. Useful for support
// engineers reproducing a customer's denial offline.
type SimulateCLI struct {
	resolver *authz.Resolver
}

type templateOnlyStore struct{}

func (templateOnlyStore) GetRoles(ctx context.Context, practiceID *int64) ([]authz.Role, error) {
	return nil, nil
}

// NewSimulateCLI constructs the helper with a resolver backed only by the
// static role templates.
func NewSimulateCLI(logger *slog.Logger) *SimulateCLI {
	catalog := authz.NewCatalog(authz.CatalogConfig{Store: templateOnlyStore{}, Logger: logger})
	return &SimulateCLI{
		resolver: authz.NewResolver(authz.ResolverConfig{
			Assignments: authz.NewAssignmentResolver(nil, catalog, logger),
			Catalog:     catalog,
			Logger:      logger,
		}),
	}
}

// SimulateOptions defines available flags for the simulate command.
type SimulateOptions struct {
	Role       string
	UserID     string
	PracticeID int64
	Resource   string
	Action     string
	ResourceID string
	OwnerID    string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// SimulateSummary describes the JSON response for simulate.
type SimulateSummary struct {
	Allowed            bool     `json:"allowed"`
	Reason             string   `json:"reason"`
	MissingPermissions []string `json:"missing_permissions,omitempty"`
	Role               string   `json:"role"`
	Permission         string   `json:"permission"`
}

// SimulateCommand runs the what-if check and prints the outcome. Exit code
// 10 signals a denial so scripts can branch on it.
func (c *SimulateCLI) SimulateCommand(ctx context.Context, opts SimulateOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	role := strings.ToUpper(strings.TrimSpace(opts.Role))
	if role == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "simulate: --role is required")
		return 1
	}
	if opts.Resource == "" || opts.Action == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "simulate: --resource and --action are required")
		return 1
	}
	resource := authz.Resource(opts.Resource)
	action := authz.Action(strings.ToUpper(opts.Action))
	if _, ok := authz.LookupPermission(resource, action); !ok {
		_, _ = fmt.Fprintf(opts.Stderr, "simulate: unknown permission %s\n", authz.PermissionKey(resource, action))
		return 1
	}

	userID := opts.UserID
	if userID == "" {
		userID = "simulated-user"
	}
	pctx := authz.PermissionContext{
		UserID:       userID,
		UserRole:     role,
		ResourceType: resource,
		Action:       action,
		ResourceID:   opts.ResourceID,
	}
	if opts.PracticeID > 0 {
		pctx.PracticeID = &opts.PracticeID
	}

	var result authz.CheckResult
	if opts.OwnerID != "" {
		owner := opts.OwnerID
		result = c.resolver.CheckResourceOwnership(ctx, pctx, func(context.Context, authz.Resource, string) (string, error) {
			return owner, nil
		})
	} else {
		result = c.resolver.CheckPermission(ctx, pctx)
	}

	if opts.JSONOutput {
		summary := SimulateSummary{
			Allowed:            result.Allowed,
			Reason:             result.Reason,
			MissingPermissions: result.MissingPermissions,
			Role:               role,
			Permission:         authz.PermissionKey(resource, action),
		}
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "simulate: encode json: %v\n", err)
			return 1
		}
	} else {
		verdict := "DENIED"
		if result.Allowed {
			verdict = "ALLOWED"
		}
		_, _ = fmt.Fprintf(opts.Stdout, "%s %s as %s: %s\n", verdict, authz.PermissionKey(resource, action), role, result.Reason)
		for _, missing := range result.MissingPermissions {
			_, _ = fmt.Fprintf(opts.Stdout, " - missing %s\n", missing)
		}
	}
	if !result.Allowed {
		return 10
	}
	return 0
}
