package workflow

import (
	"strings"

	"github.com/stockpit/ledger/models"
	"gorm.io/gorm"
)

// AcquireScopePostingLock serializes multi-statement flows (rebuild,
// correction approval) per scope across instances using Postgres
// transaction-scoped advisory locks. Released automatically at commit or
// rollback.
//
// NOTE: the lock is transaction-scoped, so this must be called on the same
// *gorm.DB transaction that will do the posting.
func AcquireScopePostingLock(tx *gorm.DB, scope models.StockScope) error {
	if !isPostgres(tx) {
		// Test dialects (sqlite) have no advisory locks; single-writer there.
		return nil
	}
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", scope.LockName()).Error
}

func isPostgres(tx *gorm.DB) bool {
	if tx == nil || tx.Dialector == nil {
		return false
	}
	name := strings.ToLower(strings.TrimSpace(tx.Dialector.Name()))
	return name == "postgres" || name == "postgresql"
}
