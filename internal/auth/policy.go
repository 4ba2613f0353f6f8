package auth

import (
	"github.com/mmynk/tontine/internal/apperr"
	"github.com/mmynk/tontine/internal/models"
)

// Action is a privileged operation checked against the caller's stored role.
type Action string

const (
	ActionListAccounts  Action = "accounts.list"
	ActionViewAccount   Action = "accounts.view"
	ActionSetStatus     Action = "subscription.set_status"
	ActionExtend        Action = "subscription.extend"
	ActionValidate      Action = "payment.validate"
	ActionListPayments  Action = "payment.list"
	ActionSendAlert     Action = "alert.send"
	ActionDeleteAccount Action = "accounts.delete"
	ActionViewStats     Action = "stats.view"
	ActionAdminFeed     Action = "events.admin_feed"
)

var adminOnly = map[Action]bool{
	ActionListAccounts:  true,
	ActionViewAccount:   true,
	ActionSetStatus:     true,
	ActionExtend:        true,
	ActionValidate:      true,
	ActionListPayments:  true,
	ActionSendAlert:     true,
	ActionDeleteAccount: true,
	ActionViewStats:     true,
	ActionAdminFeed:     true,
}

// Authorize checks that account may perform action. The account must come
// from storage, never from token claims.
func Authorize(account *models.Account, action Action) error {
	if account == nil {
		return apperr.ErrUnauthenticated
	}
	if adminOnly[action] && !account.IsAdmin() {
		return apperr.Denied("%s requires super_admin", action)
	}
	return nil
}
