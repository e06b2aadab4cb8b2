package errors

import "fmt"

// InsufficientInventoryDetails carries the numbers callers need to explain a rejected reservation.
type InsufficientInventoryDetails struct {
	Requested int `json:"requested"`
	Available int `json:"available"`
}

// NewInsufficientInventory builds the business error returned when stock cannot cover a request.
func NewInsufficientInventory(requested, available int) *Error {
	return New(CodeInsufficientInventory,
		fmt.Sprintf("insufficient inventory: requested %d, available %d", requested, available),
	).WithDetails(InsufficientInventoryDetails{Requested: requested, Available: available})
}

// InsufficientDetails extracts the requested/available pair from an insufficient inventory error.
func InsufficientDetails(err error) (InsufficientInventoryDetails, bool) {
	typed := As(err)
	if typed == nil || typed.Code() != CodeInsufficientInventory {
		return InsufficientInventoryDetails{}, false
	}
	details, ok := typed.Details().(InsufficientInventoryDetails)
	return details, ok
}

func IsInsufficientInventory(err error) bool {
	return HasCode(err, CodeInsufficientInventory)
}

func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

func IsStorage(err error) bool {
	return HasCode(err, CodeStorage)
}
