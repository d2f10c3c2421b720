package services

import "github.com/programhub/apiserver/types"

// The account rules below are the only place admin-on-admin actions are
// decided. Callers have already checked that actor is an admin.

func authorizeUserDelete(actor, target types.User) error {
	if actor.ID == target.ID {
		return invalid("You cannot delete your own account", nil)
	}
	if target.IsAdmin() {
		return forbidden("Cannot delete another admin account")
	}
	return nil
}

func authorizeUserUpdate(actor, target types.User) error {
	if actor.ID != target.ID && target.IsAdmin() {
		return forbidden("Cannot modify another admin account")
	}
	return nil
}
