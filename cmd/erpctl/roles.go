package main

import (
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/ammerola/erp-admin/internal/core/domain"
)

func rolesCommand() *cli.Command {
	return &cli.Command{
		Name:  "roles",
		Usage: "manage roles and module access",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list roles with their permissions",
				Action: func(c *cli.Context) error {
					roles, err := apiClient(c).Roles().List(c.Context)
					if err != nil {
						return err
					}
					return newPrinter(c).print(roles, func(tw *tabwriter.Writer) {
						row(tw, "ID", "NAME", "SYSTEM", "PERMISSIONS")
						for _, r := range roles {
							row(tw, r.ID, r.Name, r.IsSystem, permissionSummary(r))
						}
					})
				},
			},
			{
				Name:  "modules",
				Usage: "list grantable modules and access levels",
				Action: func(c *cli.Context) error {
					catalog, err := apiClient(c).Roles().Modules(c.Context)
					if err != nil {
						return err
					}
					return newPrinter(c).print(catalog, func(tw *tabwriter.Writer) {
						levels := make([]string, len(catalog.AccessLevels))
						for i, l := range catalog.AccessLevels {
							levels[i] = string(l)
						}
						row(tw, "Modules", strings.Join(catalog.Modules, ", "))
						row(tw, "Access levels", strings.Join(levels, ", "))
					})
				},
			},
			{
				Name:      "delete",
				Usage:     "delete a role",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := idArg(c, 0)
					if err != nil {
						return err
					}
					return apiClient(c).Roles().Delete(c.Context, id)
				},
			},
		},
	}
}

// permissionSummary lists module=level pairs in catalog order
func permissionSummary(r *domain.Role) string {
	parts := make([]string, 0, len(domain.Modules))
	for _, m := range domain.Modules {
		parts = append(parts, m+"="+string(r.AccessFor(m)))
	}
	return strings.Join(parts, " ")
}
