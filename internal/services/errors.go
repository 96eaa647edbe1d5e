package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AlanaPvart7/Proyect2/internal/repositories"
)

var (
	// ErrInvalidIdentifier signals a malformed id supplied by the caller.
	ErrInvalidIdentifier = errors.New("fulfillment: invalid identifier")
	// ErrInvalidInput signals a field failed local validation.
	ErrInvalidInput = errors.New("fulfillment: invalid input")
	// ErrNotFound indicates a referenced entity is absent or inactive.
	ErrNotFound = errors.New("fulfillment: not found")
	// ErrForbidden indicates the requester may not act on the resource.
	ErrForbidden = errors.New("fulfillment: forbidden")
	// ErrConflict indicates the write collides with existing state.
	ErrConflict = errors.New("fulfillment: conflict")
	// ErrInsufficientStock indicates the lot cannot cover the requested quantity.
	ErrInsufficientStock = fmt.Errorf("%w: insufficient stock", ErrConflict)
	// ErrInvalidTransition indicates an illegal order status move.
	ErrInvalidTransition = errors.New("fulfillment: invalid status transition")
	// ErrReconciliationFailed indicates order totals could not be rederived.
	ErrReconciliationFailed = errors.New("fulfillment: reconciliation failed")
	// ErrInconsistency marks oversold stock. It is logged and published, never returned to callers.
	ErrInconsistency = errors.New("fulfillment: inventory inconsistency")
	// ErrUnavailable indicates a backing store or lock could not be reached.
	ErrUnavailable = errors.New("fulfillment: dependency unavailable")
)

const maxIdentifierLength = 128

// ValidateIdentifier trims id and rejects empty values and characters outside [A-Za-z0-9_-].
func ValidateIdentifier(field, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidIdentifier, field)
	}
	if len(id) > maxIdentifierLength {
		return "", fmt.Errorf("%w: %s is too long", ErrInvalidIdentifier, field)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return "", fmt.Errorf("%w: %s contains %q", ErrInvalidIdentifier, field, r)
		}
	}
	return id, nil
}

// mapRepositoryError translates typed repository failures into the service taxonomy.
func mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var orderErr *repositories.OrderError
	if errors.As(err, &orderErr) {
		switch orderErr.Code {
		case repositories.OrderErrorOrderNotFound, repositories.OrderErrorLineItemNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, orderErr.Message)
		case repositories.OrderErrorDuplicateProduct:
			return fmt.Errorf("%w: %s", ErrConflict, orderErr.Message)
		case repositories.OrderErrorRevisionConflict:
			return fmt.Errorf("%w: %s", ErrConflict, orderErr.Message)
		}
	}

	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		switch invErr.Code {
		case repositories.InventoryErrorLotNotFound, repositories.InventoryErrorLotInactive:
			return fmt.Errorf("%w: %s", ErrNotFound, invErr.Message)
		case repositories.InventoryErrorVersionConflict:
			return fmt.Errorf("%w: %s", ErrConflict, invErr.Message)
		case repositories.InventoryErrorInvalidStock:
			return fmt.Errorf("%w: %s", ErrInvalidInput, invErr.Message)
		}
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return err
}

func isLotVersionConflict(err error) bool {
	var invErr *repositories.InventoryError
	return errors.As(err, &invErr) && invErr.Code == repositories.InventoryErrorVersionConflict
}
