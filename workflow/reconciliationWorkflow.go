package workflow

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/stockpit/ledger/models"
	"gorm.io/gorm"
)

// RunReconciliationChecks writes mismatch rows to reconciliation_reports.
// This is intended to be run on a schedule (nightly) or via an admin trigger.
func RunReconciliationChecks(ctx context.Context, db *gorm.DB, logger *logrus.Logger, businessId string) ([]models.ReconciliationReport, error) {
	// Delegate to the models-level implementation to avoid package cycles.
	_, reports, err := models.RunReconciliationChecks(ctx, db, businessId)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.WithFields(logrus.Fields{
			"field":       "ReconciliationChecks",
			"business_id": businessId,
			"mismatches":  len(reports),
		}).Info("reconciliation checks completed")
	}
	return reports, nil
}
