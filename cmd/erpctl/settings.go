package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/ammerola/erp-admin/internal/client"
	"github.com/ammerola/erp-admin/internal/core/domain"
)

func settingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "branding, notifications and backups",
		Subcommands: []*cli.Command{
			{
				Name:  "branding",
				Usage: "show the current branding",
				Action: func(c *cli.Context) error {
					b, err := apiClient(c).Settings().GetBranding(c.Context)
					if err != nil {
						return err
					}
					return newPrinter(c).print(b, func(tw *tabwriter.Writer) {
						row(tw, "Company", b.CompanyName)
						row(tw, "Logo", b.LogoURL)
						row(tw, "Colors", b.PrimaryColor+" / "+b.SecondaryColor)
						row(tw, "Footer", b.InvoiceFooter)
					})
				},
			},
			{
				Name:  "notifications",
				Usage: "show notification preferences",
				Action: func(c *cli.Context) error {
					n, err := apiClient(c).Settings().GetNotifications(c.Context)
					if err != nil {
						return err
					}
					return newPrinter(c).print(n, func(tw *tabwriter.Writer) {
						row(tw, "E-mail enabled", n.EmailEnabled)
						row(tw, "Invoice reminders", n.InvoiceReminders)
						row(tw, "Lead assignment", n.LeadAssignment)
						row(tw, "Backup alerts", n.BackupAlerts)
						row(tw, "Reminder days", n.ReminderDaysBeforeDue)
						row(tw, "Recipients", len(n.Recipients))
					})
				},
			},
			backupCommand(),
		},
	}
}

func backupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "start, inspect and download backups",
		Subcommands: []*cli.Command{
			{
				Name:  "start",
				Usage: "request a new backup",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "wait", Usage: "poll until the backup finishes"},
					&cli.DurationFlag{Name: "interval", Value: client.DefaultPollInterval},
				},
				Action: func(c *cli.Context) error {
					settings := apiClient(c).Settings()
					rec, err := settings.StartBackup(c.Context)
					if err != nil {
						return err
					}
					if c.Bool("wait") {
						rec, err = settings.PollBackup(c.Context, rec.ID, c.Duration("interval"))
						if err != nil && rec == nil {
							return err
						}
					}
					if perr := printBackups(c, []*domain.BackupRecord{rec}); perr != nil {
						return perr
					}
					return err
				},
			},
			{
				Name:  "history",
				Usage: "list recent backups",
				Flags: []cli.Flag{&cli.IntFlag{Name: "limit", Value: 20}},
				Action: func(c *cli.Context) error {
					records, err := apiClient(c).Settings().BackupHistory(c.Context, c.Int("limit"))
					if err != nil {
						return err
					}
					return printBackups(c, records)
				},
			},
			{
				Name:      "download",
				Usage:     "download a completed backup archive",
				ArgsUsage: "<id> [dir]",
				Flags:     []cli.Flag{&cli.StringFlag{Name: "dir", Value: "."}},
				Action: func(c *cli.Context) error {
					id, err := idArg(c, 0)
					if err != nil {
						return err
					}
					d, err := apiClient(c).Settings().DownloadBackup(c.Context, id)
					if err != nil {
						return err
					}
					path, err := d.SaveTo(dirArg(c, 1))
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, path)
					if d.Checksum != "" {
						fmt.Fprintln(c.App.Writer, "sha256", d.Checksum)
					}
					return nil
				},
			},
		},
	}
}

func printBackups(c *cli.Context, records []*domain.BackupRecord) error {
	return newPrinter(c).print(records, func(tw *tabwriter.Writer) {
		row(tw, "ID", "STATUS", "SIZE", "CREATED", "ERROR")
		for _, r := range records {
			row(tw, r.ID, r.Status, r.SizeBytes, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Error)
		}
	})
}
