package workflow

import (
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stockpit/ledger/models"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:ledger_wf_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Business{},
		&models.StockLedgerEntry{}, &models.StockProjection{},
		&models.InventoryCorrection{},
		&models.IdempotencyKey{},
		&models.ReconciliationReport{},
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testScope(n int) models.StockScope {
	return models.StockScope{
		BusinessId:  "b7e2a1de-0000-4000-8000-000000000001",
		ProductId:   100 + n,
		VariationId: 1,
		LocationId:  10,
	}
}

func TestAppendMovementRunningBalanceChain(t *testing.T) {
	db := newTestDB(t)
	logger := newTestLogger()
	scope := testScope(1)

	cost := dec("12.5")
	inputs := []*StockMovementInput{
		{Scope: scope, MovementType: models.MovementTypePurchase, QtyDelta: dec("100"), UnitCost: &cost, ReferenceType: models.ReferenceTypePurchaseReceipt, ReferenceId: 1},
		{Scope: scope, MovementType: models.MovementTypeSale, QtyDelta: dec("-30"), ReferenceType: models.ReferenceTypeSale, ReferenceId: 2},
		{Scope: scope, MovementType: models.MovementTypePurchase, QtyDelta: dec("50"), UnitCost: &cost, ReferenceType: models.ReferenceTypePurchaseReceipt, ReferenceId: 3},
	}

	wantBalances := []string{"100", "70", "120"}
	for i, in := range inputs {
		entry, err := AppendMovement(db, logger, in)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if !entry.BalanceAfter.Equal(dec(wantBalances[i])) {
			t.Fatalf("entry %d balance_after = %s, want %s", i, entry.BalanceAfter, wantBalances[i])
		}
	}

	projection, err := models.GetProjection(db, scope)
	if err != nil {
		t.Fatalf("get projection: %v", err)
	}
	if projection == nil {
		t.Fatal("projection row was not created")
	}
	if !projection.QtyAvailable.Equal(dec("120")) {
		t.Fatalf("projection qty_available = %s, want 120", projection.QtyAvailable)
	}
	if !projection.UnitCost.Equal(cost) {
		t.Fatalf("projection unit_cost = %s, want %s", projection.UnitCost, cost)
	}

	// Telescoping sum: replaying deltas reproduces every stored balance.
	entries, err := models.EntriesInOrder(db, scope, time.Time{})
	if err != nil {
		t.Fatalf("load entries: %v", err)
	}
	running := decimal.Zero
	for _, e := range entries {
		running = running.Add(e.QtyDelta)
		if !running.Equal(e.BalanceAfter) {
			t.Fatalf("entry %d: replayed %s != stored balance_after %s", e.ID, running, e.BalanceAfter)
		}
	}
}

func TestAppendMovementProjectionIsSerializationPoint(t *testing.T) {
	db := newTestDB(t)
	logger := newTestLogger()
	scope := testScope(2)

	_, err := AppendMovement(db, logger, &StockMovementInput{
		Scope: scope, MovementType: models.MovementTypeOpeningStock, QtyDelta: dec("50"),
		ReferenceType: models.ReferenceTypeOpeningStock,
	})
	if err != nil {
		t.Fatalf("seed opening stock: %v", err)
	}

	// Corrupt the ledger tail. The next append must base its balance on the
	// projection row, never on a read of the tail.
	if err := scope.Where(db.Model(&models.StockLedgerEntry{})).
		Update("balance_after", dec("999")).Error; err != nil {
		t.Fatalf("corrupt tail: %v", err)
	}

	entry, err := AppendMovement(db, logger, &StockMovementInput{
		Scope: scope, MovementType: models.MovementTypePurchase, QtyDelta: dec("10"),
		ReferenceType: models.ReferenceTypePurchaseReceipt, ReferenceId: 9,
	})
	if err != nil {
		t.Fatalf("append after corruption: %v", err)
	}
	if !entry.BalanceAfter.Equal(dec("60")) {
		t.Fatalf("balance_after = %s, want 60 (projection base, not tail)", entry.BalanceAfter)
	}
}

func TestAppendMovementOrderIndependentFinalBalance(t *testing.T) {
	db := newTestDB(t)
	logger := newTestLogger()

	// Two concurrent writers land in either order; the final balance must be
	// the same in both interleavings.
	orders := [][]string{{"10", "-5"}, {"-5", "10"}}
	for i, deltas := range orders {
		scope := testScope(10 + i)
		_, err := AppendMovement(db, logger, &StockMovementInput{
			Scope: scope, MovementType: models.MovementTypeOpeningStock, QtyDelta: dec("50"),
			ReferenceType: models.ReferenceTypeOpeningStock,
		})
		if err != nil {
			t.Fatalf("order %d: seed: %v", i, err)
		}
		for _, d := range deltas {
			delta := dec(d)
			movement := models.MovementTypePurchase
			reference := models.ReferenceTypePurchaseReceipt
			if delta.IsNegative() {
				movement = models.MovementTypeSale
				reference = models.ReferenceTypeSale
			}
			if _, err := AppendMovement(db, logger, &StockMovementInput{
				Scope: scope, MovementType: movement, QtyDelta: delta, ReferenceType: reference,
			}); err != nil {
				t.Fatalf("order %d: append %s: %v", i, d, err)
			}
		}
		projection, err := models.GetProjection(db, scope)
		if err != nil {
			t.Fatalf("order %d: get projection: %v", i, err)
		}
		if !projection.QtyAvailable.Equal(dec("55")) {
			t.Fatalf("order %d: final qty_available = %s, want 55", i, projection.QtyAvailable)
		}
		tail, err := models.LastEntry(db, scope)
		if err != nil {
			t.Fatalf("order %d: tail: %v", i, err)
		}
		if !tail.BalanceAfter.Equal(dec("55")) {
			t.Fatalf("order %d: tail balance_after = %s, want 55", i, tail.BalanceAfter)
		}
	}
}

func TestAppendMovementConcurrentWritersDeterministicBalance(t *testing.T) {
	db := newTestDB(t)
	logger := newTestLogger()
	scope := testScope(12)

	if _, err := AppendMovement(db, logger, &StockMovementInput{
		Scope: scope, MovementType: models.MovementTypeOpeningStock, QtyDelta: dec("50"),
		ReferenceType: models.ReferenceTypeOpeningStock,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Two writers race on the same scope. Whichever lands first, both base
	// their balance on the atomic projection update, so the scope always
	// nets to 55 with an intact chain.
	inputs := []*StockMovementInput{
		{Scope: scope, MovementType: models.MovementTypePurchase, QtyDelta: dec("10"), ReferenceType: models.ReferenceTypePurchaseReceipt},
		{Scope: scope, MovementType: models.MovementTypeSale, QtyDelta: dec("-5"), ReferenceType: models.ReferenceTypeSale},
	}
	var wg sync.WaitGroup
	errs := make([]error, len(inputs))
	for i, in := range inputs {
		wg.Add(1)
		go func(i int, in *StockMovementInput) {
			defer wg.Done()
			_, errs[i] = AppendMovement(db, logger, in)
		}(i, in)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent append %d: %v", i, err)
		}
	}

	projection, err := models.GetProjection(db, scope)
	if err != nil {
		t.Fatalf("get projection: %v", err)
	}
	if !projection.QtyAvailable.Equal(dec("55")) {
		t.Fatalf("final qty_available = %s, want 55", projection.QtyAvailable)
	}

	// The racing entries must hold the balances of one of the two valid
	// serialization orders: 50 -> 60 -> 55 or 50 -> 45 -> 55. Anything else
	// means a writer based its balance on a stale read.
	entries, err := models.EntriesInOrder(db, scope, time.Time{})
	if err != nil {
		t.Fatalf("load entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	var sawFinal bool
	var intermediate decimal.Decimal
	for _, e := range entries[1:] {
		if e.BalanceAfter.Equal(dec("55")) {
			sawFinal = true
			continue
		}
		intermediate = e.BalanceAfter
	}
	if !sawFinal {
		t.Fatal("no racing entry landed on the final balance 55")
	}
	if !intermediate.Equal(dec("60")) && !intermediate.Equal(dec("45")) {
		t.Fatalf("intermediate balance_after = %s, want 60 or 45", intermediate)
	}
}

func TestAppendMovementValidation(t *testing.T) {
	db := newTestDB(t)
	logger := newTestLogger()
	scope := testScope(3)

	cases := []struct {
		name    string
		input   *StockMovementInput
		wantErr bool
	}{
		{
			name:    "sale with positive delta",
			input:   &StockMovementInput{Scope: scope, MovementType: models.MovementTypeSale, QtyDelta: dec("5")},
			wantErr: true,
		},
		{
			name:    "purchase with negative delta",
			input:   &StockMovementInput{Scope: scope, MovementType: models.MovementTypePurchase, QtyDelta: dec("-5")},
			wantErr: true,
		},
		{
			name:    "zero delta adjustment",
			input:   &StockMovementInput{Scope: scope, MovementType: models.MovementTypeAdjustment, QtyDelta: decimal.Zero},
			wantErr: true,
		},
		{
			name:    "unknown movement type",
			input:   &StockMovementInput{Scope: scope, MovementType: "teleport", QtyDelta: dec("5")},
			wantErr: true,
		},
		{
			name: "negative unit cost",
			input: &StockMovementInput{
				Scope: scope, MovementType: models.MovementTypePurchase, QtyDelta: dec("5"),
				UnitCost: func() *decimal.Decimal { d := dec("-1"); return &d }(),
			},
			wantErr: true,
		},
		{
			name: "missing scope fields",
			input: &StockMovementInput{
				Scope:        models.StockScope{BusinessId: scope.BusinessId, ProductId: scope.ProductId},
				MovementType: models.MovementTypePurchase, QtyDelta: dec("5"),
			},
			wantErr: true,
		},
		{
			name:    "zero quantity opening stock baseline",
			input:   &StockMovementInput{Scope: scope, MovementType: models.MovementTypeOpeningStock, QtyDelta: decimal.Zero},
			wantErr: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := AppendMovement(db, logger, tc.input)
			if tc.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}

	// Rejected inputs must leave no trace.
	var count int64
	if err := db.Model(&models.StockLedgerEntry{}).Where("qty_delta <> ?", decimal.Zero).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("rejected movements left %d ledger rows", count)
	}
}

func TestAppendMovementsRoutesIncomingFirst(t *testing.T) {
	db := newTestDB(t)
	logger := newTestLogger()
	scope := testScope(4)

	// Outgoing listed first; the receipt must still land before the sale so
	// the running balance never dips negative.
	entries, err := AppendMovements(db, logger, []*StockMovementInput{
		{Scope: scope, MovementType: models.MovementTypeSale, QtyDelta: dec("-8"), ReferenceType: models.ReferenceTypeSale},
		{Scope: scope, MovementType: models.MovementTypePurchase, QtyDelta: dec("20"), ReferenceType: models.ReferenceTypePurchaseReceipt},
		nil,
	})
	if err != nil {
		t.Fatalf("append batch: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if !entries[0].QtyDelta.Equal(dec("20")) {
		t.Fatalf("first posted delta = %s, want 20 (incoming before outgoing)", entries[0].QtyDelta)
	}
	if entries[0].BalanceAfter.IsNegative() || entries[1].BalanceAfter.IsNegative() {
		t.Fatalf("running balance dipped negative: %s, %s", entries[0].BalanceAfter, entries[1].BalanceAfter)
	}
	if !entries[1].BalanceAfter.Equal(dec("12")) {
		t.Fatalf("final balance_after = %s, want 12", entries[1].BalanceAfter)
	}
}

func TestAppendMovementSetsIsOutgoing(t *testing.T) {
	db := newTestDB(t)
	logger := newTestLogger()
	scope := testScope(5)

	if _, err := AppendMovement(db, logger, &StockMovementInput{
		Scope: scope, MovementType: models.MovementTypeOpeningStock, QtyDelta: dec("10"),
	}); err != nil {
		t.Fatalf("incoming: %v", err)
	}
	if _, err := AppendMovement(db, logger, &StockMovementInput{
		Scope: scope, MovementType: models.MovementTypeSale, QtyDelta: dec("-4"),
	}); err != nil {
		t.Fatalf("outgoing: %v", err)
	}

	entries, err := models.EntriesInOrder(db, scope, time.Time{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].IsOutgoing == nil || *entries[0].IsOutgoing {
		t.Fatal("incoming entry flagged as outgoing")
	}
	if entries[1].IsOutgoing == nil || !*entries[1].IsOutgoing {
		t.Fatal("outgoing entry not flagged as outgoing")
	}
}
