package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MovementType is the closed set of inventory movement kinds.
type MovementType string

const (
	MovementTypeOpeningStock   MovementType = "opening_stock"
	MovementTypePurchase       MovementType = "purchase"
	MovementTypeSale           MovementType = "sale"
	MovementTypeTransferIn     MovementType = "transfer_in"
	MovementTypeTransferOut    MovementType = "transfer_out"
	MovementTypeAdjustment     MovementType = "adjustment"
	MovementTypeCustomerReturn MovementType = "customer_return"
	MovementTypeSupplierReturn MovementType = "supplier_return"
)

// movementSigns maps each movement type to its required delta sign:
// +1 stock in, -1 stock out, 0 either direction.
var movementSigns = map[MovementType]int{
	MovementTypeOpeningStock:   +1,
	MovementTypePurchase:       +1,
	MovementTypeSale:           -1,
	MovementTypeTransferIn:     +1,
	MovementTypeTransferOut:    -1,
	MovementTypeAdjustment:     0,
	MovementTypeCustomerReturn: +1,
	MovementTypeSupplierReturn: -1,
}

func (m MovementType) Valid() bool {
	_, ok := movementSigns[m]
	return ok
}

// ValidateDelta enforces the sign convention in the data layer instead of
// relying on caller discipline. Zero deltas are rejected for every type
// except opening_stock, which may record a zero baseline.
func (m MovementType) ValidateDelta(qtyDelta decimal.Decimal) error {
	sign, ok := movementSigns[m]
	if !ok {
		return fmt.Errorf("unknown movement type %q", m)
	}
	if qtyDelta.IsZero() {
		if m == MovementTypeOpeningStock {
			return nil
		}
		return fmt.Errorf("movement type %q requires a non-zero quantity", m)
	}
	switch sign {
	case +1:
		if qtyDelta.IsNegative() {
			return fmt.Errorf("movement type %q requires a positive quantity, got %s", m, qtyDelta)
		}
	case -1:
		if qtyDelta.IsPositive() {
			return fmt.Errorf("movement type %q requires a negative quantity, got %s", m, qtyDelta)
		}
	}
	return nil
}

// CostBearing reports whether this movement carries a unit cost.
func (m MovementType) CostBearing() bool {
	return m == MovementTypeOpeningStock || m == MovementTypePurchase
}

// ReferenceType identifies the originating business document of a ledger
// entry. Weak reference, audit traceability only.
type ReferenceType string

const (
	ReferenceTypePurchaseReceipt ReferenceType = "PR"
	ReferenceTypeSale            ReferenceType = "SL"
	ReferenceTypeTransferOrder   ReferenceType = "TO"
	ReferenceTypeCorrection      ReferenceType = "CR"
	ReferenceTypeOpeningStock    ReferenceType = "OS"
	ReferenceTypeReturn          ReferenceType = "RT"
)

type CorrectionStatus string

const (
	CorrectionStatusPending  CorrectionStatus = "pending"
	CorrectionStatusApproved CorrectionStatus = "approved"
)

type IdempotencyStatus string

const (
	IdempotencyStatusStarted   IdempotencyStatus = "STARTED"
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)

// DateString is a calendar date that reports normalize to a concrete UTC
// instant in the business timezone before querying.
type DateString time.Time

// ParseDateString accepts "2006-01-02" or "2006-01-02T15:04:05".
func ParseDateString(s string) (DateString, error) {
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return DateString(t), nil
		}
	}
	return DateString{}, errors.New("error parsing datetime")
}

func (t *DateString) StartOfDayUTCTime(timezone string) error {
	// do nothing if the pointer is nil
	if t == nil {
		return nil
	}
	localTime := time.Time(*t)
	if timezone == "" {
		timezone = "UTC"
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}
	localTimeInZone := time.Date(
		localTime.Year(), localTime.Month(), localTime.Day(),
		0, 0, 0, 0,
		location,
	)
	*t = DateString(localTimeInZone.In(time.UTC))
	return nil
}

// EndOfDayUTCTime normalizes to 23:59:59.999 local so that "as of this date"
// includes every transaction recorded that day.
func (t *DateString) EndOfDayUTCTime(timezone string) error {
	// do nothing if the pointer is nil
	if t == nil {
		return nil
	}
	localTime := time.Time(*t)
	if timezone == "" {
		timezone = "UTC"
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}
	localTimeInZone := time.Date(
		localTime.Year(), localTime.Month(), localTime.Day(),
		23, 59, 59, int(999*time.Millisecond),
		location,
	)
	*t = DateString(localTimeInZone.In(time.UTC))
	return nil
}
