package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/ammerola/erp-admin/internal/client"
	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/listquery"
)

func leadsCommand() *cli.Command {
	return &cli.Command{
		Name:  "leads",
		Usage: "manage sales leads",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list leads",
				Flags: listFlags(
					&cli.StringFlag{Name: "priority"},
					&cli.StringFlag{Name: "assigned-to", Usage: "employee id"},
				),
				Action: listLeads,
			},
			{
				Name:      "get",
				Usage:     "show one lead",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := idArg(c, 0)
					if err != nil {
						return err
					}
					lead, err := apiClient(c).Leads().Get(c.Context, id)
					if err != nil {
						return err
					}
					return newPrinter(c).print(lead, func(tw *tabwriter.Writer) {
						row(tw, "Company", lead.Company)
						row(tw, "Contact", lead.ContactName)
						row(tw, "Email", lead.Email)
						row(tw, "Phone", lead.Phone)
						row(tw, "Status", lead.Status)
						row(tw, "Priority", lead.Priority)
						row(tw, "Assignee", lead.AssigneeName)
						row(tw, "Value", lead.EstimatedValue.StringFixed(domain.MoneyPlaces))
					})
				},
			},
			{
				Name:      "create",
				Usage:     "create a lead from a JSON file (- for stdin)",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					var in client.LeadInput
					if err := readJSONArg(c, &in); err != nil {
						return err
					}
					lead, err := apiClient(c).Leads().Create(c.Context, in)
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, lead.ID)
					return nil
				},
			},
			{
				Name:   "stats",
				Usage:  "show pipeline statistics",
				Action: leadStats,
			},
			{
				Name:  "employees",
				Usage: "list employees leads can be assigned to",
				Action: func(c *cli.Context) error {
					employees, err := apiClient(c).Leads().Employees(c.Context)
					if err != nil {
						return err
					}
					return newPrinter(c).print(employees, func(tw *tabwriter.Writer) {
						row(tw, "ID", "NAME", "EMAIL", "DEPARTMENT")
						for _, e := range employees {
							row(tw, e.ID, e.Name, e.Email, e.Department)
						}
					})
				},
			},
			{
				Name:  "export",
				Usage: "export leads as CSV or XLSX",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Value: "csv", Usage: "csv or xlsx"},
					&cli.StringFlag{Name: "dir", Value: "."},
					&cli.StringFlag{Name: "search", Aliases: []string{"q"}},
					&cli.StringFlag{Name: "status"},
					&cli.StringFlag{Name: "priority"},
				},
				Action: exportLeads,
			},
			{
				Name:      "import",
				Usage:     "import leads from a CSV or XLSX file",
				ArgsUsage: "<file>",
				Action:    importLeads,
			},
			{
				Name:      "delete",
				Usage:     "delete a lead",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := idArg(c, 0)
					if err != nil {
						return err
					}
					return apiClient(c).Leads().Delete(c.Context, id)
				},
			},
		},
	}
}

func listLeads(c *cli.Context) error {
	api := apiClient(c)
	fetch := func(ctx context.Context, s listquery.State) (*domain.Page[*domain.Lead], error) {
		return api.Leads().List(ctx, s.Query())
	}

	items, state, err := fetchPages(c, fetch)
	if err != nil {
		return err
	}
	return newPrinter(c).print(items, func(tw *tabwriter.Writer) {
		row(tw, "ID", "COMPANY", "EMAIL", "STATUS", "PRIORITY", "ASSIGNEE", "VALUE")
		for _, l := range items {
			row(tw, l.ID, l.Company, l.Email, l.Status, l.Priority, l.AssigneeName,
				l.EstimatedValue.StringFixed(domain.MoneyPlaces))
		}
		fmt.Fprintln(tw, pageFooter(state, len(items)))
	})
}

func leadStats(c *cli.Context) error {
	stats, err := apiClient(c).Leads().Stats(c.Context)
	if err != nil {
		return err
	}
	return newPrinter(c).print(stats, func(tw *tabwriter.Writer) {
		row(tw, "Total", stats.Total)
		for _, s := range domain.LeadStatuses {
			row(tw, "  "+string(s), stats.ByStatus[s])
		}
		for _, p := range domain.LeadPriorities {
			row(tw, "  "+string(p), stats.ByPriority[p])
		}
		row(tw, "Pipeline value", stats.TotalEstimatedValue.StringFixed(domain.MoneyPlaces))
		row(tw, "Converted value", stats.ConvertedValue.StringFixed(domain.MoneyPlaces))
		row(tw, "Conversion rate", stats.ConversionRate.String()+"%")
	})
}

func exportLeads(c *cli.Context) error {
	s := listquery.Reduce(listquery.NewState(), listquery.SetFilters{Filters: listquery.Filters{
		Search:   c.String("search"),
		Status:   c.String("status"),
		Priority: c.String("priority"),
	}})
	query := s.Query()
	query.Del("page")
	query.Del("limit")

	leads := apiClient(c).Leads()
	var (
		d   *client.Download
		err error
	)
	switch c.String("format") {
	case "csv":
		d, err = leads.ExportCSV(c.Context, query)
	case "xlsx":
		d, err = leads.ExportXLSX(c.Context, query)
	default:
		return cli.Exit(fmt.Sprintf("unknown format %q", c.String("format")), 2)
	}
	if err != nil {
		return err
	}

	path, err := d.SaveTo(c.String("dir"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, path)
	return nil
}

func importLeads(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return cli.Exit("missing file argument", 2)
	}
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := apiClient(c).Leads().Import(c.Context, filepath.Base(name), f)
	if err != nil {
		return err
	}
	return newPrinter(c).print(res, func(tw *tabwriter.Writer) {
		row(tw, "Imported", res.Imported)
		row(tw, "Skipped", len(res.Skipped))
		for _, e := range res.Skipped {
			row(tw, fmt.Sprintf("  row %d", e.Row), e.Message)
		}
	})
}
