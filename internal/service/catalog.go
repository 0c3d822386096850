package service

import (
	"context"
	"fmt"
	"strings"

	"motopos/backend/internal/domain"
	"motopos/backend/internal/store"
	"motopos/backend/internal/xid"
)

func (s *Service) ListParts(ctx context.Context) ([]domain.Part, error) {
	return s.repo.ListParts(ctx)
}

func (s *Service) CreatePart(ctx context.Context, req domain.PartCreateRequest) (domain.Part, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Part{}, err
	}

	branchID := s.branch(req.BranchID)
	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.ToLower(strings.TrimSpace(req.Category))
	if req.SKU == "" || req.Name == "" || req.Category == "" {
		return domain.Part{}, store.ErrInvalidTransaction
	}
	if req.CostPrice < 0 || req.RetailPrice < 0 || req.InitialStock < 0 {
		return domain.Part{}, store.ErrInvalidTransaction
	}

	created, err := s.repo.CreatePart(ctx, domain.Part{
		SKU:      req.SKU,
		Name:     req.Name,
		Category: req.Category,
		Prices: map[string]domain.PartPrice{
			branchID: {CostPrice: req.CostPrice, RetailPrice: req.RetailPrice},
		},
		Stock:  map[string]int{},
		Active: true,
	})
	if err != nil {
		return domain.Part{}, err
	}

	if req.InitialStock > 0 {
		created, err = s.repo.ReceiveStock(ctx, domain.InventoryTransaction{
			ID:          xid.New("inv"),
			BranchID:    branchID,
			PartID:      created.ID,
			Type:        domain.InventoryStockIn,
			Quantity:    req.InitialStock,
			UnitCost:    req.CostPrice,
			ReferenceID: "initial",
			CreatedAt:   s.now().UTC(),
		})
		if err != nil {
			return domain.Part{}, err
		}
	}

	s.logAudit(ctx, branchID, "part_create", "part", created.ID, fmt.Sprintf("sku=%s,retail=%d,stock=%d", created.SKU, req.RetailPrice, req.InitialStock))
	return *created, nil
}

// ReceiveStock books a stock-in for a part at a branch.
func (s *Service) ReceiveStock(ctx context.Context, req domain.StockReceiptRequest) (domain.Part, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Part{}, err
	}
	if req.Quantity < 1 || req.UnitCost < 0 || strings.TrimSpace(req.PartID) == "" {
		return domain.Part{}, store.ErrInvalidTransaction
	}

	branchID := s.branch(req.BranchID)
	entryID := xid.New("inv")
	part, err := s.repo.ReceiveStock(ctx, domain.InventoryTransaction{
		ID:        entryID,
		BranchID:  branchID,
		PartID:    strings.TrimSpace(req.PartID),
		Type:      domain.InventoryStockIn,
		Quantity:  req.Quantity,
		UnitCost:  req.UnitCost,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return domain.Part{}, err
	}

	detail := fmt.Sprintf("part=%s,qty=%d,unit_cost=%d", part.ID, req.Quantity, req.UnitCost)
	if note := strings.TrimSpace(req.Note); note != "" {
		detail += ",note=" + note
	}
	s.logAudit(ctx, branchID, "stock_receive", "inventory", entryID, detail)
	return *part, nil
}
