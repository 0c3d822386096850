package service

import (
	"context"
	"io"
	"time"

	"motopos/backend/internal/domain"
	"motopos/backend/internal/export"
	"motopos/backend/internal/report"
)

func (s *Service) rangeKey(name string, from, to time.Time) string {
	return name + ":" + formatBound(from, s.loc) + ":" + formatBound(to, s.loc)
}

func formatBound(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(time.DateOnly)
}

// cached serves dest from the report cache or fills it with build. Cache
// errors are logged and treated as misses. The generation is read before the
// build so a sale landing mid-build keeps the result out of the cache.
func (s *Service) cached(ctx context.Context, branchID, name, key string, dest any, build func() error) error {
	generation, err := s.cache.Generation(ctx, branchID)
	if err != nil {
		s.log.Warn(s.log.WithField(ctx, "cache_key", key), "report cache read failed", err)
		s.metrics.ObserveCacheLookup(name, false)
		return build()
	}

	hit, err := s.cache.Get(ctx, branchID, key, dest)
	if err != nil {
		s.log.Warn(s.log.WithField(ctx, "cache_key", key), "report cache read failed", err)
	}
	s.metrics.ObserveCacheLookup(name, hit)
	if hit {
		return nil
	}

	if err := build(); err != nil {
		return err
	}
	if err := s.cache.Set(ctx, branchID, generation, key, dest, s.cacheTTL); err != nil {
		s.log.Warn(s.log.WithField(ctx, "cache_key", key), "report cache write failed", err)
	}
	return nil
}

func (s *Service) SalesReport(ctx context.Context, branchID string, from, to time.Time) (domain.SalesReport, error) {
	branchID = s.branch(branchID)
	var out domain.SalesReport
	err := s.cached(ctx, branchID, "sales", s.rangeKey("sales", from, to), &out, func() error {
		sales, err := s.repo.ListSales(ctx, branchID, from, to)
		if err != nil {
			return err
		}
		ledger, err := s.repo.ListCashLedger(ctx, branchID, from, to)
		if err != nil {
			return err
		}
		out = report.AggregateSales(sales, ledger, s.loc)
		out.BranchID = branchID
		out.From = formatBound(from, s.loc)
		out.To = formatBound(lastDay(to), s.loc)
		return nil
	})
	return out, err
}

func (s *Service) InventoryReport(ctx context.Context, branchID string) (domain.InventoryReport, error) {
	parts, err := s.repo.ListParts(ctx)
	if err != nil {
		return domain.InventoryReport{}, err
	}
	return report.ValueInventory(parts, s.branch(branchID)), nil
}

func (s *Service) ReconciliationReport(ctx context.Context, branchID string, from, to time.Time) (domain.ReconciliationReport, error) {
	branchID = s.branch(branchID)
	var out domain.ReconciliationReport
	err := s.cached(ctx, branchID, "reconciliation", s.rangeKey("reconciliation", from, to), &out, func() error {
		sales, err := s.repo.ListSales(ctx, branchID, from, to)
		if err != nil {
			return err
		}
		debts, err := s.repo.ListDebts(ctx, domain.DebtFilter{BranchID: branchID})
		if err != nil {
			return err
		}
		out = report.Reconcile(sales, debts)
		out.BranchID = branchID
		out.From = formatBound(from, s.loc)
		out.To = formatBound(lastDay(to), s.loc)
		return nil
	})
	return out, err
}

func (s *Service) ExportVATXML(ctx context.Context, w io.Writer, branchID string, from, to time.Time) error {
	branchID = s.branch(branchID)
	sales, err := s.repo.ListSales(ctx, branchID, from, to)
	if err != nil {
		return err
	}
	orders, err := s.repo.ListWorkOrders(ctx, branchID, from, to)
	if err != nil {
		return err
	}
	doc := export.BuildVATDocument(branchID, from, lastDay(to), sales, orders, s.loc)
	return export.WriteVATXML(w, doc)
}

func (s *Service) ExportSalesExcel(ctx context.Context, w io.Writer, branchID string, from, to time.Time) error {
	rep, err := s.SalesReport(ctx, branchID, from, to)
	if err != nil {
		return err
	}
	return export.WriteSalesWorkbook(w, rep)
}

// lastDay converts an exclusive upper bound back to the inclusive day.
func lastDay(to time.Time) time.Time {
	if to.IsZero() {
		return to
	}
	return to.Add(-time.Nanosecond)
}
