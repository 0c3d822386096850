package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"motopos/backend/internal/cache"
	"motopos/backend/internal/domain"
	"motopos/backend/internal/store"
	"motopos/backend/internal/xid"
)

func (s *Service) GetSale(ctx context.Context, saleID string) (domain.Sale, error) {
	sale, err := s.repo.FindSaleByID(ctx, strings.TrimSpace(saleID))
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, branchID string, from, to time.Time) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, s.branch(branchID), from, to)
}

// DeleteSale removes a sale and reverses its stock, cash and debt effects.
func (s *Service) DeleteSale(ctx context.Context, saleID string) (domain.Sale, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Sale{}, err
	}
	deleted, err := s.repo.DeleteSale(ctx, strings.TrimSpace(saleID), s.now().UTC())
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, deleted.BranchID, "sale_delete", "sale", deleted.ID, fmt.Sprintf("total=%d,items=%d", deleted.Total, len(deleted.Items)))
	s.salesChanged(ctx, deleted.BranchID, deleted.ID, cache.SaleDeleted)
	return *deleted, nil
}

func (s *Service) ListDebts(ctx context.Context, filter domain.DebtFilter) ([]domain.CustomerDebt, error) {
	filter.BranchID = s.branch(filter.BranchID)
	return s.repo.ListDebts(ctx, filter)
}

// PayDebt records a repayment. The amount must be in (0, remaining].
func (s *Service) PayDebt(ctx context.Context, debtID string, req domain.DebtPaymentRequest) (domain.CustomerDebt, error) {
	debt, err := s.repo.GetDebt(ctx, strings.TrimSpace(debtID))
	if err != nil {
		return domain.CustomerDebt{}, err
	}
	if debt.Status != domain.DebtOpen {
		return domain.CustomerDebt{}, store.ErrConflict
	}
	if req.Amount <= 0 || req.Amount > debt.RemainingAmount {
		return domain.CustomerDebt{}, store.ErrInvalidTransaction
	}

	actor, _ := ActorFromContext(ctx)
	updated, err := s.repo.RecordDebtPayment(ctx, domain.DebtPayment{
		ID:        xid.New("dpay"),
		DebtID:    debt.ID,
		Amount:    req.Amount,
		Note:      strings.TrimSpace(req.Note),
		CreatedBy: actor.Username,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return domain.CustomerDebt{}, err
	}

	s.logAudit(ctx, updated.BranchID, "debt_payment", "debt", updated.ID, fmt.Sprintf("amount=%d,remaining=%d", req.Amount, updated.RemainingAmount))
	s.invalidateReports(ctx, updated.BranchID)
	return *updated, nil
}
