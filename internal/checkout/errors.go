package checkout

// Error is a finalization rejection with a stable machine-readable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrEmptyCart              = &Error{Code: "EMPTY_CART", Message: "cart is empty"}
	ErrPaymentMethodRequired  = &Error{Code: "PAYMENT_METHOD_REQUIRED", Message: "payment method is required"}
	ErrInvalidPaymentMethod   = &Error{Code: "INVALID_PAYMENT_METHOD", Message: "payment method must be cash, bank or card"}
	ErrPaymentTypeRequired    = &Error{Code: "PAYMENT_TYPE_REQUIRED", Message: "payment type is required"}
	ErrInvalidPaymentType     = &Error{Code: "INVALID_PAYMENT_TYPE", Message: "payment type must be full, partial, installment or note"}
	ErrInvalidDiscount        = &Error{Code: "INVALID_DISCOUNT", Message: "discount must be non-negative and a percentage must not exceed 100"}
	ErrInvalidPartialAmount   = &Error{Code: "INVALID_PARTIAL_AMOUNT", Message: "partial amount must be greater than 0 and not exceed the total"}
	ErrCODContactRequired     = &Error{Code: "COD_CONTACT_REQUIRED", Message: "cash on delivery requires an address and a phone number"}
	ErrInstallmentPlanMissing = &Error{Code: "INSTALLMENT_PLAN_REQUIRED", Message: "installment requires a finance company and a positive term"}
	ErrInvalidPrepaidAmount   = &Error{Code: "INVALID_PREPAID_AMOUNT", Message: "prepaid amount must be between 0 and the total"}
	ErrInvalidSaleID          = &Error{Code: "INVALID_SALE_ID", Message: "sale id is malformed"}
	ErrAmountTooLarge         = &Error{Code: "AMOUNT_TOO_LARGE", Message: "line or cart total is too large"}
)
