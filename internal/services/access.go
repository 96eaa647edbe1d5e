package services

import "strings"

// Requester is the resolved identity an operation acts for.
type Requester struct {
	UserID  string
	IsAdmin bool
}

// CanAccessOrder reports whether requester may read or mutate order. Admins bypass ownership.
func CanAccessOrder(order Order, requester Requester) bool {
	if requester.IsAdmin {
		return true
	}
	uid := strings.TrimSpace(requester.UserID)
	return uid != "" && uid == order.UserID
}
