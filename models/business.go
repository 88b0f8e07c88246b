package models

import (
	"context"
	"errors"
	"time"

	"github.com/stockpit/ledger/config"
	"github.com/stockpit/ledger/utils"
	"gorm.io/gorm"
)

type Business struct {
	ID        string    `gorm:"size:36;primary_key" json:"id"` // uuid
	Name      string    `gorm:"size:100;not null" json:"name"`
	Timezone  string    `gorm:"size:50;default:UTC" json:"timezone"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

const businessCacheTTL = 10 * time.Minute

// GetBusiness fetches the business for the tenant in context. Rows are
// cached in Redis; timezone lookups sit on every report's hot path.
func GetBusiness(ctx context.Context) (*Business, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdRequired
	}

	cacheKey := "business:" + businessId
	var cached Business
	if hit, err := config.GetRedisObject(cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	db := config.GetDB()
	if db == nil {
		return nil, ErrDBNotInitialized
	}
	var business Business
	if err := db.WithContext(ctx).Where("id = ?", businessId).First(&business).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	_ = config.SetRedisObject(cacheKey, business, businessCacheTTL)
	return &business, nil
}
