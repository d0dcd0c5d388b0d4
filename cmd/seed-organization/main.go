// seed-organization creates an organization with its first ADMIN user, the
// same way POST /auth/signup does. Useful for fresh environments.
//
// Usage:
//
//	go run ./cmd/seed-organization --name "Acme Legal" --code ACME \
//	  --admin-name "Jane Doe" --admin-email jane@acme.test --admin-password secret123 [--migrate]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/AbdiTefera1/casewise-sub001/models"
)

func main() {
	var input models.NewOrganization
	flag.StringVar(&input.Name, "name", "", "organization name")
	flag.StringVar(&input.Code, "code", "", "organization code (unique)")
	flag.StringVar(&input.Email, "email", "", "organization contact email")
	flag.StringVar(&input.Phone, "phone", "", "organization phone")
	flag.StringVar(&input.Timezone, "timezone", "", "IANA timezone (default UTC)")
	flag.StringVar(&input.AdminName, "admin-name", "", "admin user name")
	flag.StringVar(&input.AdminEmail, "admin-email", "", "admin user email")
	flag.StringVar(&input.AdminPassword, "admin-password", "", "admin user password (min 8 chars)")
	migrate := flag.Bool("migrate", false, "run AutoMigrate first")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	if *migrate {
		models.MigrateTable()
	}

	login, err := models.CreateOrganization(context.Background(), &input)
	if err != nil {
		config.LogError(config.GetLogger(), "seed-organization", "main", "CreateOrganization", input.Code, err)
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(login, "", "  ")
	fmt.Println(string(out))
}
