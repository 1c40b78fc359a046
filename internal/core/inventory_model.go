package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Warehouse represents a physical storage location within a company.
type Warehouse struct {
	ID        int       `json:"id"`
	CompanyID int       `json:"company_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// StockLevel is a read view of an inventory_item joined with item and warehouse info.
type StockLevel struct {
	ItemCode      string          `json:"item_code"`
	ItemName      string          `json:"item_name"`
	WarehouseCode string          `json:"warehouse_code"`
	WarehouseName string          `json:"warehouse_name"`
	OnHand        decimal.Decimal `json:"on_hand"`
	UnitCost      decimal.Decimal `json:"unit_cost"` // weighted average purchase cost
}
