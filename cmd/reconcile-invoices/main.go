// reconcile-invoices re-derives every invoice status from its live payments and
// reports (or fixes) the invoices whose stored status drifted.
//
// Usage:
//
//	go run ./cmd/reconcile-invoices --org <organization id> [--dry-run]
//	go run ./cmd/reconcile-invoices --all [--dry-run]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/AbdiTefera1/casewise-sub001/models"
	"github.com/AbdiTefera1/casewise-sub001/utils"
)

type driftLine struct {
	OrganizationId string `json:"organization_id"`
	models.InvoiceDrift
	Fixed bool `json:"fixed"`
}

func main() {
	organizationID := flag.String("org", "", "organization id (uuid)")
	all := flag.Bool("all", false, "reconcile every organization")
	dryRun := flag.Bool("dry-run", false, "report drift without fixing it")
	flag.Parse()

	if strings.TrimSpace(*organizationID) == "" && !*all {
		fmt.Fprintln(os.Stderr, "--org or --all is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()

	ids := []string{strings.TrimSpace(*organizationID)}
	if *all {
		ids = nil
		bypass := utils.SetSkipTenantScopeInContext(context.Background(), true)
		if err := db.WithContext(bypass).Model(&models.Organization{}).Order("created_at").Pluck("id", &ids).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to list organizations: %v\n", err)
			os.Exit(1)
		}
	}

	exit := 0
	for _, id := range ids {
		ctx := utils.SetOrganizationIdInContext(context.Background(), id)
		ctx = utils.SetUserNameInContext(ctx, "reconcile-invoices")

		drifts, err := models.ReconcileInvoices(ctx, *dryRun)
		// drifts before a failure were committed one by one
		for _, d := range drifts {
			line, _ := json.Marshal(driftLine{OrganizationId: id, InvoiceDrift: d, Fixed: !*dryRun})
			fmt.Println(string(line))
		}
		if err != nil {
			config.LogError(logger, "reconcile-invoices", "main", "ReconcileInvoices", id, err)
			fmt.Fprintf(os.Stderr, "organization %s: %v\n", id, err)
			exit = 1
			continue
		}
		config.LogInfo(logger, "reconcile-invoices", "main", "organization reconciled", map[string]any{
			"organization_id": id,
			"drifted":         len(drifts),
			"dry_run":         *dryRun,
		})
	}
	os.Exit(exit)
}
