package config

import (
	"os"
	"strings"
)

// DriftPolicy controls what the point-in-time reconstructor does when the
// ledger and the projection disagree beyond tolerance.
type DriftPolicy string

const (
	// DriftPolicyWarn logs a warning and returns a best-effort estimate.
	DriftPolicyWarn DriftPolicy = "warn"
	// DriftPolicyStrict refuses to answer and surfaces ErrLedgerDrift.
	DriftPolicyStrict DriftPolicy = "strict"
)

// GetDriftPolicy reads LEDGER_DRIFT_POLICY. Defaults to warn-and-estimate,
// which matches how reporting historically behaved.
func GetDriftPolicy() DriftPolicy {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("LEDGER_DRIFT_POLICY")))
	if v == string(DriftPolicyStrict) {
		return DriftPolicyStrict
	}
	return DriftPolicyWarn
}

// StrictLedgerSchema enforces hard schema constraints on stock_ledger_entries
// at startup. Intended for clean-start environments.
//
// Set via env:
// - LEDGER_STRICT_SCHEMA=false to skip (default true)
func StrictLedgerSchema() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("LEDGER_STRICT_SCHEMA")))
	return v != "false" && v != "0" && v != "no"
}
