package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"motopos/backend/internal/domain"
	"motopos/backend/internal/store"
	"motopos/backend/internal/xid"
)

// workOrderTransitions lists the statuses each status may move to.
var workOrderTransitions = map[domain.WorkOrderStatus][]domain.WorkOrderStatus{
	domain.WorkOrderReceived:   {domain.WorkOrderInProgress, domain.WorkOrderCancelled},
	domain.WorkOrderInProgress: {domain.WorkOrderCompleted, domain.WorkOrderCancelled},
	domain.WorkOrderCompleted:  {domain.WorkOrderDelivered, domain.WorkOrderCancelled},
}

func canTransition(from, to domain.WorkOrderStatus) bool {
	for _, next := range workOrderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CreateWorkOrder opens a repair ticket. Part lines are priced at the
// branch's current retail price; stock is not reserved.
func (s *Service) CreateWorkOrder(ctx context.Context, req domain.WorkOrderCreateRequest) (domain.WorkOrder, error) {
	branchID := s.branch(req.BranchID)
	plate := strings.ToUpper(strings.TrimSpace(req.VehiclePlate))
	if plate == "" || strings.TrimSpace(req.Description) == "" || req.LaborCost < 0 || req.PaidAmount < 0 {
		return domain.WorkOrder{}, store.ErrInvalidTransaction
	}

	ids := make([]string, 0, len(req.Parts))
	for _, line := range req.Parts {
		if line.Quantity < 1 {
			return domain.WorkOrder{}, store.ErrInvalidTransaction
		}
		ids = append(ids, line.PartID)
	}
	parts, err := s.repo.GetPartsByIDs(ctx, ids)
	if err != nil {
		return domain.WorkOrder{}, err
	}

	items := make([]domain.SaleItem, 0, len(req.Parts))
	total := req.LaborCost
	for _, line := range req.Parts {
		part, ok := parts[line.PartID]
		if !ok {
			return domain.WorkOrder{}, fmt.Errorf("part %s: %w", line.PartID, store.ErrNotFound)
		}
		price, ok := part.PriceFor(branchID)
		if !ok {
			return domain.WorkOrder{}, store.ErrInvalidTransaction
		}
		item := domain.SaleItem{
			Kind:         domain.LineKindPart,
			PartID:       part.ID,
			PartName:     part.Name,
			SKU:          part.SKU,
			Category:     part.Category,
			Quantity:     line.Quantity,
			SellingPrice: price.RetailPrice,
			CostPrice:    price.CostPrice,
		}
		items = append(items, item)
		total += item.LineTotal()
	}
	if req.PaidAmount > total {
		return domain.WorkOrder{}, store.ErrInvalidTransaction
	}

	actor, _ := ActorFromContext(ctx)
	now := s.now().UTC()
	created, err := s.repo.CreateWorkOrder(ctx, domain.WorkOrder{
		ID:           xid.New("wo"),
		BranchID:     branchID,
		Customer:     req.Customer,
		VehiclePlate: plate,
		VehicleModel: strings.TrimSpace(req.VehicleModel),
		Description:  strings.TrimSpace(req.Description),
		Parts:        items,
		LaborCost:    req.LaborCost,
		Total:        total,
		PaidAmount:   req.PaidAmount,
		Status:       domain.WorkOrderReceived,
		CreatedBy:    actor.Username,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return domain.WorkOrder{}, err
	}

	s.logAudit(ctx, branchID, "work_order_create", "work_order", created.ID, fmt.Sprintf("plate=%s,total=%d", created.VehiclePlate, created.Total))
	return *created, nil
}

func (s *Service) SetWorkOrderStatus(ctx context.Context, id string, to domain.WorkOrderStatus) (domain.WorkOrder, error) {
	current, err := s.repo.GetWorkOrder(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.WorkOrder{}, err
	}
	if !canTransition(current.Status, to) {
		return domain.WorkOrder{}, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateWorkOrderStatus(ctx, current.ID, current.Status, to, s.now().UTC())
	if err != nil {
		return domain.WorkOrder{}, err
	}

	s.logAudit(ctx, updated.BranchID, "work_order_status", "work_order", updated.ID, fmt.Sprintf("%s->%s", current.Status, to))
	return *updated, nil
}

func (s *Service) ListWorkOrders(ctx context.Context, branchID string, from, to time.Time) ([]domain.WorkOrder, error) {
	return s.repo.ListWorkOrders(ctx, s.branch(branchID), from, to)
}
