// Package policy holds the ownership and role predicates every mutating
// endpoint checks.
package policy

import (
	"go_trial/foodhub/apperror"
	"go_trial/foodhub/models"
)

func HasRole(u *models.User, roles ...models.Role) bool {
	if u == nil {
		return false
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// CanManageShop reports whether u owns the shop or is an admin.
func CanManageShop(u *models.User, s *models.Shop) bool {
	if u == nil || s == nil {
		return false
	}
	return u.IsAdmin() || s.Owner == u.ID
}

func IsOrderCustomer(u *models.User, o *models.Order) bool {
	return u != nil && o != nil && o.Customer == u.ID
}

// CanViewOrder allows the customer, the shop's owner and admins.
func CanViewOrder(u *models.User, o *models.Order, s *models.Shop) bool {
	return IsOrderCustomer(u, o) || CanManageShop(u, s)
}

// CheckToggleUser rejects an actor deactivating their own account.
func CheckToggleUser(actor, target *models.User) error {
	if actor != nil && target != nil && actor.ID == target.ID {
		return apperror.BusinessRule("You cannot deactivate your own account")
	}
	return nil
}
