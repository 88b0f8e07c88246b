package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestMovementTypeValidateDelta(t *testing.T) {
	cases := []struct {
		movement MovementType
		delta    string
		wantErr  bool
	}{
		{MovementTypePurchase, "5", false},
		{MovementTypePurchase, "-5", true},
		{MovementTypePurchase, "0", true},
		{MovementTypeSale, "-5", false},
		{MovementTypeSale, "5", true},
		{MovementTypeTransferIn, "2", false},
		{MovementTypeTransferOut, "-2", false},
		{MovementTypeTransferOut, "2", true},
		{MovementTypeCustomerReturn, "1", false},
		{MovementTypeSupplierReturn, "-1", false},
		{MovementTypeAdjustment, "3", false},
		{MovementTypeAdjustment, "-3", false},
		{MovementTypeAdjustment, "0", true},
		{MovementTypeOpeningStock, "10", false},
		{MovementTypeOpeningStock, "0", false},
		{MovementTypeOpeningStock, "-10", true},
		{MovementType("teleport"), "1", true},
	}
	for _, tc := range cases {
		err := tc.movement.ValidateDelta(decimal.RequireFromString(tc.delta))
		if tc.wantErr && err == nil {
			t.Errorf("%s delta %s: expected error", tc.movement, tc.delta)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("%s delta %s: unexpected error %v", tc.movement, tc.delta, err)
		}
	}
}

func TestMovementTypeCostBearing(t *testing.T) {
	if !MovementTypeOpeningStock.CostBearing() || !MovementTypePurchase.CostBearing() {
		t.Fatal("opening_stock and purchase must carry cost")
	}
	if MovementTypeSale.CostBearing() || MovementTypeAdjustment.CostBearing() {
		t.Fatal("sale and adjustment must not carry cost")
	}
}

func TestParseDateString(t *testing.T) {
	d, err := ParseDateString("2025-11-05")
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	if got := time.Time(d); got.Year() != 2025 || got.Month() != time.November || got.Day() != 5 {
		t.Fatalf("parsed %s", got)
	}
	if _, err := ParseDateString("2025-11-05T13:45:00"); err != nil {
		t.Fatalf("parse datetime: %v", err)
	}
	if _, err := ParseDateString("05/11/2025"); err == nil {
		t.Fatal("expected error for unsupported layout")
	}
}

func TestDateStringEndOfDayUTCTime(t *testing.T) {
	d, err := ParseDateString("2025-06-01")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := d.EndOfDayUTCTime("Asia/Yangon"); err != nil {
		t.Fatalf("end of day: %v", err)
	}
	// 2025-06-01 23:59:59.999 in UTC+6:30 is 17:29:59.999 UTC.
	got := time.Time(d)
	want := time.Date(2025, 6, 1, 17, 29, 59, int(999*time.Millisecond), time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestDateStringStartOfDayUTCTime(t *testing.T) {
	d, err := ParseDateString("2025-06-01")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := d.StartOfDayUTCTime("Asia/Yangon"); err != nil {
		t.Fatalf("start of day: %v", err)
	}
	got := time.Time(d)
	want := time.Date(2025, 5, 31, 17, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}

	// Empty timezone defaults to UTC.
	d2, _ := ParseDateString("2025-06-01")
	if err := d2.StartOfDayUTCTime(""); err != nil {
		t.Fatalf("default timezone: %v", err)
	}
	if !time.Time(d2).Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("got %s, want midnight UTC", time.Time(d2))
	}
}
