package workflow

import (
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stockpit/ledger/config"
	"github.com/stockpit/ledger/models"
	"gorm.io/gorm"
)

const correctionApproveHandler = "correction-approve"

// ApproveCorrection marks a pending correction approved and posts its
// difference to the ledger as an adjustment, all in the caller's
// transaction. The correction's created_at becomes the new report anchor
// for the scope.
//
// Idempotent per correction: a retried approval after a crash is a no-op.
func ApproveCorrection(tx *gorm.DB, logger *logrus.Logger, correctionId int, approvedBy string) (*models.InventoryCorrection, error) {
	if tx == nil {
		return nil, fmt.Errorf("approve correction: tx is nil")
	}
	if logger == nil {
		logger = config.GetLogger()
	}

	var correction models.InventoryCorrection
	if err := tx.Where("id = ?", correctionId).First(&correction).Error; err != nil {
		return nil, err
	}
	if correction.Status == models.CorrectionStatusApproved {
		return &correction, nil
	}
	scope := correction.Scope()

	if err := AcquireScopePostingLock(tx, scope); err != nil {
		return nil, err
	}

	skip, err := BeginIdempotency(tx, scope.BusinessId, correctionApproveHandler, strconv.Itoa(correction.ID))
	if err != nil {
		return nil, err
	}
	if skip {
		return &correction, nil
	}

	if !correction.Difference.IsZero() {
		_, err := AppendMovement(tx, logger, &StockMovementInput{
			Scope:         scope,
			MovementType:  models.MovementTypeAdjustment,
			QtyDelta:      correction.Difference,
			ReferenceType: models.ReferenceTypeCorrection,
			ReferenceId:   correction.ID,
			CreatedBy:     approvedBy,
		})
		if err != nil {
			_ = MarkIdempotencyFailed(tx, scope.BusinessId, correctionApproveHandler, strconv.Itoa(correction.ID), err)
			return nil, err
		}
	}

	now := time.Now().UTC()
	if err := tx.Model(&correction).Updates(map[string]interface{}{
		"status":      models.CorrectionStatusApproved,
		"approved_at": &now,
		"approved_by": approvedBy,
	}).Error; err != nil {
		return nil, err
	}
	if err := MarkIdempotencySucceeded(tx, scope.BusinessId, correctionApproveHandler, strconv.Itoa(correction.ID)); err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"scope":          scope.String(),
		"correction_id":  correction.ID,
		"system_count":   correction.SystemCount.String(),
		"physical_count": correction.PhysicalCount.String(),
		"difference":     correction.Difference.String(),
	}).Info("ledger.correction.approved")

	return &correction, nil
}
