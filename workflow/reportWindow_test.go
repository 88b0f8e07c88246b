package workflow

import (
	"testing"
	"time"

	"github.com/stockpit/ledger/models"
)

func TestResolveReportWindowWithoutCorrection(t *testing.T) {
	db := newTestDB(t)
	scope := testScope(50)

	window, err := ResolveReportWindow(db, scope)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !window.Start.Equal(time.Unix(0, 0).UTC()) {
		t.Fatalf("start = %s, want unix epoch", window.Start)
	}
	if !window.OpeningQty.IsZero() {
		t.Fatalf("opening qty = %s, want 0", window.OpeningQty)
	}
	if window.Anchor != nil {
		t.Fatal("anchor set without any correction")
	}
}

func TestResolveReportWindowAnchorsToLatestApprovedCorrection(t *testing.T) {
	db := newTestDB(t)
	scope := testScope(51)

	older := time.Now().UTC().Add(-96 * time.Hour)
	newer := time.Now().UTC().Add(-48 * time.Hour)

	// Stock moved long before the anchor; the window must surface that stock
	// as an explicit opening quantity instead of silently dropping it.
	insertEntry(t, db, scope, older.Add(-24*time.Hour), "120", "120")

	for _, c := range []models.InventoryCorrection{
		{
			BusinessId: scope.BusinessId, ProductId: scope.ProductId,
			VariationId: scope.VariationId, LocationId: scope.LocationId,
			SystemCount: dec("120"), PhysicalCount: dec("118"),
			Status: models.CorrectionStatusApproved, CreatedAt: older,
		},
		{
			BusinessId: scope.BusinessId, ProductId: scope.ProductId,
			VariationId: scope.VariationId, LocationId: scope.LocationId,
			SystemCount: dec("118"), PhysicalCount: dec("115"),
			Status: models.CorrectionStatusApproved, CreatedAt: newer,
		},
		{
			// Pending counts never move the window.
			BusinessId: scope.BusinessId, ProductId: scope.ProductId,
			VariationId: scope.VariationId, LocationId: scope.LocationId,
			SystemCount: dec("115"), PhysicalCount: dec("110"),
			Status: models.CorrectionStatusPending, CreatedAt: time.Now().UTC(),
		},
	} {
		correction := c
		if err := db.Create(&correction).Error; err != nil {
			t.Fatalf("create correction: %v", err)
		}
	}

	window, err := ResolveReportWindow(db, scope)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if window.Anchor == nil {
		t.Fatal("anchor missing")
	}
	if !window.Start.Equal(window.Anchor.CreatedAt) {
		t.Fatalf("start = %s, want anchor created_at %s", window.Start, window.Anchor.CreatedAt)
	}
	if !window.Anchor.PhysicalCount.Equal(dec("115")) {
		t.Fatalf("anchor physical count = %s, want latest approved (115)", window.Anchor.PhysicalCount)
	}
	if !window.OpeningQty.Equal(dec("115")) {
		t.Fatalf("opening qty = %s, want 115", window.OpeningQty)
	}
}

func TestResolveReportWindowOtherScopeCorrectionIgnored(t *testing.T) {
	db := newTestDB(t)
	scope := testScope(52)
	other := testScope(53)

	correction := models.InventoryCorrection{
		BusinessId: other.BusinessId, ProductId: other.ProductId,
		VariationId: other.VariationId, LocationId: other.LocationId,
		SystemCount: dec("10"), PhysicalCount: dec("9"),
		Status: models.CorrectionStatusApproved,
	}
	if err := db.Create(&correction).Error; err != nil {
		t.Fatalf("create correction: %v", err)
	}

	window, err := ResolveReportWindow(db, scope)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if window.Anchor != nil {
		t.Fatal("correction from another scope leaked into the window")
	}
}
