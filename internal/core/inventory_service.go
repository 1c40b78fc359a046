package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// InventoryService tracks warehouse stock moved by gate-inward documents.
type InventoryService interface {
	GetWarehouses(ctx context.Context, companyID int) ([]Warehouse, error)
	GetStockLevels(ctx context.Context, companyID int) ([]StockLevel, error)

	// TX-scoped operations: work within a caller-provided transaction so stock
	// changes land atomically with the document.

	// ReceiveStockTx increases qty_on_hand for every line with an item code.
	// Lines without an item code are service lines and are skipped.
	ReceiveStockTx(ctx context.Context, tx pgx.Tx, companyID int, documentID int64, warehouseCode, movementDate string, lines []DocumentLine) error
	// ReverseReceiptTx undoes the receipts booked for documentID.
	ReverseReceiptTx(ctx context.Context, tx pgx.Tx, documentID int64) error
}

type inventoryService struct {
	pool *pgxpool.Pool
}

func NewInventoryService(pool *pgxpool.Pool) InventoryService {
	return &inventoryService{pool: pool}
}

func (s *inventoryService) GetWarehouses(ctx context.Context, companyID int) ([]Warehouse, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, company_id, code, name, is_active, created_at
		FROM warehouses
		WHERE company_id = $1 AND is_active = true
		ORDER BY code
	`, companyID)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to query warehouses: %w", err))
	}
	defer rows.Close()

	var warehouses []Warehouse
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.CompanyID, &w.Code, &w.Name, &w.IsActive, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan warehouse: %w", err)
		}
		warehouses = append(warehouses, w)
	}
	return warehouses, rows.Err()
}

func (s *inventoryService) GetStockLevels(ctx context.Context, companyID int) ([]StockLevel, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT it.code, it.name, w.code, w.name, ii.qty_on_hand, ii.unit_cost
		FROM inventory_items ii
		JOIN items it     ON it.id = ii.item_id
		JOIN warehouses w ON w.id = ii.warehouse_id
		WHERE ii.company_id = $1
		ORDER BY it.code, w.code
	`, companyID)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to query stock levels: %w", err))
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var sl StockLevel
		if err := rows.Scan(&sl.ItemCode, &sl.ItemName, &sl.WarehouseCode, &sl.WarehouseName, &sl.OnHand, &sl.UnitCost); err != nil {
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		levels = append(levels, sl)
	}
	return levels, rows.Err()
}

// ReceiveStockTx updates qty_on_hand using weighted average cost. The unit
// cost of a line is its taxable amount over its quantity.
func (s *inventoryService) ReceiveStockTx(ctx context.Context, tx pgx.Tx, companyID int, documentID int64, warehouseCode, movementDate string, lines []DocumentLine) error {
	var warehouseID int
	if err := tx.QueryRow(ctx,
		"SELECT id FROM warehouses WHERE company_id = $1 AND code = $2 AND is_active = true",
		companyID, warehouseCode,
	).Scan(&warehouseID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return invalid("warehouse", fmt.Sprintf("warehouse %q not found", warehouseCode))
		}
		return fmt.Errorf("failed to resolve warehouse: %w", err)
	}

	for _, line := range lines {
		if line.Input.ItemCode == "" {
			continue
		}

		var itemID int
		if err := tx.QueryRow(ctx,
			"SELECT id FROM items WHERE company_id = $1 AND code = $2 AND is_active = true",
			companyID, line.Input.ItemCode,
		).Scan(&itemID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return invalid(fmt.Sprintf("lines[%d].item_code", line.LineNumber), fmt.Sprintf("item %q not found", line.Input.ItemCode))
			}
			return fmt.Errorf("failed to resolve item: %w", err)
		}

		qty := line.Input.Quantity
		unitCost := line.Computed.TaxableAmount.Div(qty).Round(4)

		// Upsert then lock the row so concurrent receipts serialize on it.
		var invID int
		var oldQty, oldCost decimal.Decimal
		err := tx.QueryRow(ctx, `
			INSERT INTO inventory_items (company_id, item_id, warehouse_id, qty_on_hand, unit_cost)
			VALUES ($1, $2, $3, 0, 0)
			ON CONFLICT (item_id, warehouse_id) DO UPDATE SET updated_at = NOW()
			RETURNING id
		`, companyID, itemID, warehouseID).Scan(&invID)
		if err != nil {
			return fmt.Errorf("failed to upsert inventory item: %w", err)
		}
		err = tx.QueryRow(ctx,
			"SELECT qty_on_hand, unit_cost FROM inventory_items WHERE id = $1 FOR UPDATE",
			invID,
		).Scan(&oldQty, &oldCost)
		if err != nil {
			return fmt.Errorf("failed to lock inventory item: %w", err)
		}

		// new_cost = (old_qty * old_cost + qty * unit_cost) / (old_qty + qty)
		newQty := oldQty.Add(qty)
		newCost := unitCost
		if !newQty.IsZero() {
			newCost = oldQty.Mul(oldCost).Add(qty.Mul(unitCost)).Div(newQty).Round(4)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE inventory_items
			SET qty_on_hand = $1, unit_cost = $2, updated_at = NOW()
			WHERE id = $3
		`, newQty, newCost, invID); err != nil {
			return fmt.Errorf("failed to update inventory item: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO inventory_movements (company_id, inventory_item_id, document_id, movement_type, quantity, unit_cost, movement_date)
			VALUES ($1, $2, $3, 'RECEIPT', $4, $5, $6)
		`, companyID, invID, documentID, qty, unitCost, movementDate); err != nil {
			return fmt.Errorf("failed to insert inventory movement: %w", err)
		}
	}
	return nil
}

func (s *inventoryService) ReverseReceiptTx(ctx context.Context, tx pgx.Tx, documentID int64) error {
	rows, err := tx.Query(ctx, `
		SELECT company_id, inventory_item_id, quantity, unit_cost
		FROM inventory_movements
		WHERE document_id = $1 AND movement_type = 'RECEIPT'
	`, documentID)
	if err != nil {
		return fmt.Errorf("failed to fetch movements for document %d: %w", documentID, err)
	}
	type movement struct {
		companyID int
		invID     int
		qty       decimal.Decimal
		unitCost  decimal.Decimal
	}
	var movements []movement
	for rows.Next() {
		var m movement
		if err := rows.Scan(&m.companyID, &m.invID, &m.qty, &m.unitCost); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan movement: %w", err)
		}
		movements = append(movements, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating movements: %w", err)
	}

	for _, m := range movements {
		var onHand decimal.Decimal
		if err := tx.QueryRow(ctx,
			"SELECT qty_on_hand FROM inventory_items WHERE id = $1 FOR UPDATE", m.invID,
		).Scan(&onHand); err != nil {
			return fmt.Errorf("failed to lock inventory item: %w", err)
		}
		if onHand.LessThan(m.qty) {
			return fmt.Errorf("cannot reverse receipt: only %s on hand, %s received", onHand, m.qty)
		}
		if _, err := tx.Exec(ctx,
			"UPDATE inventory_items SET qty_on_hand = qty_on_hand - $1, updated_at = NOW() WHERE id = $2",
			m.qty, m.invID,
		); err != nil {
			return fmt.Errorf("failed to update inventory item: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO inventory_movements (company_id, inventory_item_id, document_id, movement_type, quantity, unit_cost, movement_date)
			VALUES ($1, $2, $3, 'REVERSAL', $4, $5, CURRENT_DATE)
		`, m.companyID, m.invID, documentID, m.qty.Neg(), m.unitCost); err != nil {
			return fmt.Errorf("failed to insert reversal movement: %w", err)
		}
	}
	return nil
}
