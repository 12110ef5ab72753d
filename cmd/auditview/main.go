package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"channel-gateway/domain"
	"channel-gateway/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

// auditview prints the gateway's administrative audit trail.
// Run it against a stopped gateway (badger holds an exclusive lock).
func main() {
	dbPath := flag.String("db", "./data/audit", "Path to the audit badger DB")
	limit := flag.Int("limit", 50, "Maximum entries to display (0 = all)")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).WithReadOnly(true).WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	repository := repositories.NewAuditRepository(db, slog.Default())
	entries, err := repository.List(*limit)
	if err != nil {
		log.Fatal("Error while listing audit entries: ", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"At", "Actor", "Action", "Subject", "Outcome", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, entry := range entries {
		outcome := color.Green.Sprint(entry.Outcome)
		if entry.Outcome == domain.OutcomeRefused {
			outcome = color.Red.Sprint(entry.Outcome)
		}
		table.Append([]string{
			entry.At.Format("2006-01-02 15:04:05"),
			entry.Actor,
			entry.Action,
			entry.Subject,
			outcome,
			entry.Detail,
		})
	}

	if len(entries) == 0 {
		color.Yellow.Println("No audit entries found")
		return
	}
	table.Render()
}
