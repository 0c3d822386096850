package httpapi

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"motopos/backend/internal/domain"
	"motopos/backend/internal/service"
)

func branchParam(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("branch_id"))
}

func terminalParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "terminal"))
}

func (a *API) dateRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	return a.service.ParseDateRange(q.Get("from"), q.Get("to"))
}

func (a *API) handleListParts(w http.ResponseWriter, r *http.Request) {
	parts, err := a.service.ListParts(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"parts": parts})
}

func (a *API) handleCreatePart(w http.ResponseWriter, r *http.Request) {
	var req domain.PartCreateRequest
	if err := a.decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	part, err := a.service.CreatePart(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"part": part})
}

func (a *API) handleReceiveStock(w http.ResponseWriter, r *http.Request) {
	var req domain.StockReceiptRequest
	if err := a.decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	part, err := a.service.ReceiveStock(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"part": part})
}

func (a *API) handleGetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.service.Cart(r.Context(), branchParam(r), terminalParam(r)))
}

func (a *API) handleClearCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.service.ClearCart(r.Context(), branchParam(r), terminalParam(r)))
}

func (a *API) handleAddPart(w http.ResponseWriter, r *http.Request) {
	var req service.CartPartRequest
	if err := a.decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	state, err := a.service.AddPartToCart(r.Context(), branchParam(r), terminalParam(r), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (a *API) handleAddService(w http.ResponseWriter, r *http.Request) {
	var req service.CartServiceRequest
	if err := a.decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	state, err := a.service.AddServiceToCart(r.Context(), branchParam(r), terminalParam(r), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (a *API) handleUpdateLine(w http.ResponseWriter, r *http.Request) {
	var req service.CartLineUpdate
	if err := a.decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	state, err := a.service.UpdateCartLine(r.Context(), branchParam(r), terminalParam(r), chi.URLParam(r, "line"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (a *API) handleRemoveLine(w http.ResponseWriter, r *http.Request) {
	state, err := a.service.RemoveCartLine(r.Context(), branchParam(r), terminalParam(r), chi.URLParam(r, "line"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req service.CheckoutRequest
	if err := a.decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	resp, err := a.service.Checkout(r.Context(), branchParam(r), terminalParam(r), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	status := http.StatusCreated
	if resp.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (a *API) handleCancelEdit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.service.CancelEdit(r.Context(), branchParam(r), terminalParam(r)))
}

func (a *API) handleListSales(w http.ResponseWriter, r *http.Request) {
	from, to, err := a.dateRange(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	sales, err := a.service.ListSales(r.Context(), branchParam(r), from, to)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
}

func (a *API) handleGetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := a.service.GetSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (a *API) handleDeleteSale(w http.ResponseWriter, r *http.Request) {
	sale, err := a.service.DeleteSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": sale})
}

type editSaleRequest struct {
	TerminalID string `json:"terminal_id" validate:"required,max=64"`
}

func (a *API) handleEditSale(w http.ResponseWriter, r *http.Request) {
	var req editSaleRequest
	if err := a.decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	state, err := a.service.BeginEditSale(r.Context(), branchParam(r), req.TerminalID, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (a *API) handleListDebts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	debts, err := a.service.ListDebts(r.Context(), domain.DebtFilter{
		BranchID:   branchParam(r),
		CustomerID: strings.TrimSpace(q.Get("customer_id")),
		Status:     domain.DebtStatus(strings.TrimSpace(q.Get("status"))),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"debts": debts})
}

func (a *API) handlePayDebt(w http.ResponseWriter, r *http.Request) {
	var req domain.DebtPaymentRequest
	if err := a.decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	debt, err := a.service.PayDebt(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, debt)
}

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := a.dateRange(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	rep, err := a.service.SalesReport(r.Context(), branchParam(r), from, to)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *API) handleInventoryReport(w http.ResponseWriter, r *http.Request) {
	rep, err := a.service.InventoryReport(r.Context(), branchParam(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *API) handleReconciliation(w http.ResponseWriter, r *http.Request) {
	from, to, err := a.dateRange(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	rep, err := a.service.ReconciliationReport(r.Context(), branchParam(r), from, to)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *API) handleVATExport(w http.ResponseWriter, r *http.Request) {
	from, to, err := a.dateRange(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := a.service.ExportVATXML(r.Context(), &buf, branchParam(r), from, to); err != nil {
		a.fail(w, r, err)
		return
	}
	writeFile(w, "application/xml; charset=utf-8", "vat-export.xml", buf.Bytes())
}

func (a *API) handleSalesExcel(w http.ResponseWriter, r *http.Request) {
	from, to, err := a.dateRange(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := a.service.ExportSalesExcel(r.Context(), &buf, branchParam(r), from, to); err != nil {
		a.fail(w, r, err)
		return
	}
	writeFile(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "sales-report.xlsx", buf.Bytes())
}

func writeFile(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (a *API) handleListWorkOrders(w http.ResponseWriter, r *http.Request) {
	from, to, err := a.dateRange(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	orders, err := a.service.ListWorkOrders(r.Context(), branchParam(r), from, to)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"work_orders": orders})
}

func (a *API) handleCreateWorkOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.WorkOrderCreateRequest
	if err := a.decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if req.BranchID == "" {
		req.BranchID = branchParam(r)
	}
	order, err := a.service.CreateWorkOrder(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (a *API) handleWorkOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.WorkOrderStatusRequest
	if err := a.decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	order, err := a.service.SetWorkOrderStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	from, to, err := a.dateRange(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	logs, err := a.service.ListAuditLogs(r.Context(), branchParam(r), from, to, limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit_logs": logs})
}

func (a *API) handleListCashiers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"cashiers": a.auth.ListCashiers(r.Context())})
}

func (a *API) handleCreateCashier(w http.ResponseWriter, r *http.Request) {
	var req domain.CashierCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cashier, err := a.auth.CreateCashier(r.Context(), req)
	if err != nil {
		status, code := statusFor(err)
		if status == http.StatusInternalServerError {
			status, code = http.StatusBadRequest, "INVALID_REQUEST"
		}
		writeErrorCode(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"cashier": cashier})
}
