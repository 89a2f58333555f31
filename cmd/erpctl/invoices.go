package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/ammerola/erp-admin/internal/adapters/pdf"
	"github.com/ammerola/erp-admin/internal/client"
	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/listquery"
)

func invoicesCommand() *cli.Command {
	return &cli.Command{
		Name:    "invoices",
		Aliases: []string{"inv"},
		Usage:   "manage invoices",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "list invoices",
				Flags:  listFlags(),
				Action: listInvoices,
			},
			{
				Name:      "get",
				Usage:     "show one invoice",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := idArg(c, 0)
					if err != nil {
						return err
					}
					inv, err := apiClient(c).Invoices().Get(c.Context, id)
					if err != nil {
						return err
					}
					return printInvoice(c, inv)
				},
			},
			{
				Name:      "create",
				Usage:     "create an invoice from a JSON file (- for stdin)",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					var in client.InvoiceInput
					if err := readJSONArg(c, &in); err != nil {
						return err
					}
					inv, err := apiClient(c).Invoices().Create(c.Context, in)
					if err != nil {
						return err
					}
					return printInvoice(c, inv)
				},
			},
			{
				Name:      "status",
				Usage:     "change an invoice's status",
				ArgsUsage: "<id> <Draft|Unpaid|Paid|Overdue>",
				Action: func(c *cli.Context) error {
					id, err := idArg(c, 0)
					if err != nil {
						return err
					}
					status := domain.InvoiceStatus(c.Args().Get(1))
					if !status.IsValid() {
						return cli.Exit(fmt.Sprintf("unknown status %q", status), 2)
					}
					inv, err := apiClient(c).Invoices().UpdateStatus(c.Context, id, status)
					if err != nil {
						return err
					}
					return printInvoice(c, inv)
				},
			},
			{
				Name:      "send",
				Usage:     "e-mail an invoice",
				ArgsUsage: "<id>",
				Flags:     []cli.Flag{&cli.StringFlag{Name: "to", Usage: "override the client's address"}},
				Action: func(c *cli.Context) error {
					id, err := idArg(c, 0)
					if err != nil {
						return err
					}
					res, err := apiClient(c).Invoices().Send(c.Context, id, c.String("to"))
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "queued as task %s\n", res.TaskID)
					return nil
				},
			},
			{
				Name:      "pdf",
				Usage:     "download an invoice PDF",
				ArgsUsage: "<id> [dir]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Value: ".", Usage: "directory to save into"},
					&cli.BoolFlag{Name: "text", Usage: "print the document text instead of saving"},
				},
				Action: downloadInvoicePDF,
			},
			{
				Name:      "delete",
				Usage:     "delete an invoice",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := idArg(c, 0)
					if err != nil {
						return err
					}
					return apiClient(c).Invoices().Delete(c.Context, id)
				},
			},
		},
	}
}

func listInvoices(c *cli.Context) error {
	api := apiClient(c)
	fetch := func(ctx context.Context, s listquery.State) (*domain.Page[*domain.Invoice], error) {
		return api.Invoices().List(ctx, s.Query())
	}

	items, state, err := fetchPages(c, fetch)
	if err != nil {
		return err
	}
	return newPrinter(c).print(items, func(tw *tabwriter.Writer) {
		row(tw, "ID", "NUMBER", "CLIENT", "STATUS", "DUE", "AMOUNT")
		for _, inv := range items {
			row(tw, inv.ID, inv.InvoiceNumber, inv.ClientName, inv.Status,
				inv.DueDate.Format("2006-01-02"), inv.Currency+" "+inv.Amount.StringFixed(domain.MoneyPlaces))
		}
		fmt.Fprintln(tw, pageFooter(state, len(items)))
	})
}

func printInvoice(c *cli.Context, inv *domain.Invoice) error {
	return newPrinter(c).print(inv, func(tw *tabwriter.Writer) {
		row(tw, "Number", inv.InvoiceNumber)
		row(tw, "Client", inv.ClientName)
		row(tw, "Status", inv.Status)
		row(tw, "Issued", inv.IssueDate.Format("2006-01-02"))
		row(tw, "Due", inv.DueDate.Format("2006-01-02"))
		for _, item := range inv.Items {
			row(tw, "  "+item.ItemName, item.Quantity.String()+" x "+item.Price.StringFixed(domain.MoneyPlaces), item.Total.StringFixed(domain.MoneyPlaces))
		}
		row(tw, "Subtotal", inv.Subtotal.StringFixed(domain.MoneyPlaces))
		row(tw, "Discount", inv.DiscountTotal.StringFixed(domain.MoneyPlaces))
		row(tw, "Tax", inv.TaxTotal.StringFixed(domain.MoneyPlaces))
		row(tw, "Total", inv.Currency+" "+inv.Amount.StringFixed(domain.MoneyPlaces))
	})
}

func downloadInvoicePDF(c *cli.Context) error {
	id, err := idArg(c, 0)
	if err != nil {
		return err
	}
	d, err := apiClient(c).Invoices().DownloadPDF(c.Context, id)
	if err != nil {
		return err
	}

	if !trailingBool(c, "text") {
		path, err := d.SaveTo(dirArg(c, 1))
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, path)
		return nil
	}

	defer d.Close()
	data, err := io.ReadAll(d.Body)
	if err != nil {
		return fmt.Errorf("read pdf: %w", err)
	}
	pages, err := pdf.ExtractText(data)
	if err != nil {
		return err
	}
	for i, text := range pages {
		fmt.Fprintf(c.App.Writer, "--- page %d ---\n%s\n", i+1, text)
	}
	return nil
}

func idArg(c *cli.Context, n int) (uuid.UUID, error) {
	raw := c.Args().Get(n)
	if raw == "" {
		return uuid.Nil, cli.Exit("missing id argument", 2)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, cli.Exit(fmt.Sprintf("invalid id %q", raw), 2)
	}
	return id, nil
}

// dirArg returns the target directory: a --dir written after the
// positional arguments, then an optional positional at n, then the flag.
// urfave/cli stops parsing flags at the first positional, so anything
// after <id> arrives in Args.
func dirArg(c *cli.Context, n int) string {
	if v, ok := trailingFlag(c, "dir"); ok {
		return v
	}
	if v := c.Args().Get(n); v != "" && !strings.HasPrefix(v, "-") {
		return v
	}
	return c.String("dir")
}

// trailingFlag finds --name value, --name=value or the single-dash forms
// among the positional arguments.
func trailingFlag(c *cli.Context, name string) (string, bool) {
	args := c.Args().Slice()
	for i, a := range args {
		key, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || key != name {
			continue
		}
		if hasValue {
			return value, true
		}
		if i+1 < len(args) {
			return args[i+1], true
		}
		return "", true
	}
	return "", false
}

// trailingBool reports whether a boolean flag was given before or after the
// positional arguments.
func trailingBool(c *cli.Context, name string) bool {
	if c.Bool(name) {
		return true
	}
	for _, a := range c.Args().Slice() {
		key, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if strings.HasPrefix(a, "-") && key == name {
			return !hasValue || value == "true"
		}
	}
	return false
}

// readJSONArg decodes the file named by the first argument, or stdin for "-"
func readJSONArg(c *cli.Context, v any) error {
	name := c.Args().First()
	if name == "" {
		return cli.Exit("missing file argument", 2)
	}

	var r io.Reader = os.Stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}
