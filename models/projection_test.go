package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestIncrementProjectionCreatesAndAccumulates(t *testing.T) {
	db := newTestDB(t)
	scope := testScope(80)

	balance, err := IncrementProjection(db, scope, dec("100"))
	if err != nil {
		t.Fatalf("first increment: %v", err)
	}
	if !balance.Equal(dec("100")) {
		t.Fatalf("balance = %s, want 100 after lazy create", balance)
	}

	balance, err = IncrementProjection(db, scope, dec("-30"))
	if err != nil {
		t.Fatalf("second increment: %v", err)
	}
	if !balance.Equal(dec("70")) {
		t.Fatalf("balance = %s, want 70", balance)
	}

	// Fractional deltas stay exact.
	balance, err = IncrementProjection(db, scope, dec("0.25"))
	if err != nil {
		t.Fatalf("fractional increment: %v", err)
	}
	if !balance.Equal(dec("70.25")) {
		t.Fatalf("balance = %s, want 70.25", balance)
	}

	projection, err := GetProjection(db, scope)
	if err != nil {
		t.Fatalf("get projection: %v", err)
	}
	if !projection.QtyAvailable.Equal(dec("70.25")) {
		t.Fatalf("stored qty_available = %s, want 70.25", projection.QtyAvailable)
	}
}

func TestIncrementProjectionScopeIsolation(t *testing.T) {
	db := newTestDB(t)
	a := testScope(81)
	b := a
	b.LocationId = a.LocationId + 1

	if _, err := IncrementProjection(db, a, dec("10")); err != nil {
		t.Fatalf("scope a: %v", err)
	}
	if _, err := IncrementProjection(db, b, dec("3")); err != nil {
		t.Fatalf("scope b: %v", err)
	}

	pa, err := GetProjection(db, a)
	if err != nil {
		t.Fatalf("get a: %v", err)
	}
	pb, err := GetProjection(db, b)
	if err != nil {
		t.Fatalf("get b: %v", err)
	}
	if !pa.QtyAvailable.Equal(dec("10")) || !pb.QtyAvailable.Equal(dec("3")) {
		t.Fatalf("got %s/%s, want 10/3 (locations must not share a row)", pa.QtyAvailable, pb.QtyAvailable)
	}
}

func TestGetProjectionMissingScope(t *testing.T) {
	db := newTestDB(t)
	projection, err := GetProjection(db, testScope(82))
	if err != nil {
		t.Fatalf("get projection: %v", err)
	}
	if projection != nil {
		t.Fatalf("got %+v, want nil for untouched scope", projection)
	}
}

func TestSetProjectionQtyOverwrites(t *testing.T) {
	db := newTestDB(t)
	scope := testScope(83)
	seedProjection(t, db, scope, "5")

	if err := SetProjectionQty(db, scope, decimal.RequireFromString("90")); err != nil {
		t.Fatalf("set qty: %v", err)
	}
	projection, err := GetProjection(db, scope)
	if err != nil {
		t.Fatalf("get projection: %v", err)
	}
	if !projection.QtyAvailable.Equal(dec("90")) {
		t.Fatalf("qty_available = %s, want 90", projection.QtyAvailable)
	}
}
