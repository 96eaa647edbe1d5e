package repositories

import "fmt"

// InventoryErrorCode enumerates failure causes for lot reads and writes. LotInactive means the lot
// was deactivated and cannot back new reservations; VersionConflict means the lot changed since its
// availability was computed.
type InventoryErrorCode string

const (
	InventoryErrorUnknown         InventoryErrorCode = "inventory_unknown"
	InventoryErrorLotNotFound     InventoryErrorCode = "inventory_lot_not_found"
	InventoryErrorLotInactive     InventoryErrorCode = "inventory_lot_inactive"
	InventoryErrorVersionConflict InventoryErrorCode = "inventory_version_conflict"
	InventoryErrorInvalidStock    InventoryErrorCode = "inventory_invalid_stock"
)

// OrderErrorCode enumerates failure causes for order and line-item writes. LineItemNotFound also
// covers items attached to another order or already removed.
type OrderErrorCode string

const (
	OrderErrorUnknown          OrderErrorCode = "order_unknown"
	OrderErrorOrderNotFound    OrderErrorCode = "order_not_found"
	OrderErrorLineItemNotFound OrderErrorCode = "order_line_item_not_found"
	OrderErrorDuplicateProduct OrderErrorCode = "order_duplicate_product"
	OrderErrorRevisionConflict OrderErrorCode = "order_revision_conflict"
)

// CodedError is a persistence failure carrying a machine readable code. Services branch on Code with
// errors.As against the concrete aliases below.
type CodedError[C ~string] struct {
	Op      string
	Code    C
	Message string
	Err     error
}

type (
	InventoryError = CodedError[InventoryErrorCode]
	OrderError     = CodedError[OrderErrorCode]
)

func (e *CodedError[C]) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *CodedError[C]) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newCodedError[C ~string](code C, message string, err error) *CodedError[C] {
	if message == "" {
		message = string(code)
	}
	return &CodedError[C]{Code: code, Message: message, Err: err}
}

func NewInventoryError(code InventoryErrorCode, message string, err error) *InventoryError {
	return newCodedError(code, message, err)
}

func NewOrderError(code OrderErrorCode, message string, err error) *OrderError {
	return newCodedError(code, message, err)
}
