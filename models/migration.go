package models

import (
	"context"
	"log"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/AbdiTefera1/casewise-sub001/utils"
)

func MigrateTable() {
	// the migrator inspects tables outside any tenant
	ctx := utils.SetSkipTenantScopeInContext(context.Background(), true)
	db := config.GetDB().WithContext(ctx)

	err := db.AutoMigrate(
		&Organization{}, &User{}, &Lawyer{},
		&SequenceCounter{},
		&Client{}, &Case{}, &Task{}, &Appointment{}, &Document{},
		&Invoice{}, &InvoiceItem{}, &Payment{},
		&ActivityLog{}, &EventRecord{}, &Notification{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
