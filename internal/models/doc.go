// Package models defines the core domain models for the tontine service.
//
// # Entities
//
//   - Account: a registered phone number with a PIN and a role
//   - Subscription: per-account activation, expiration and block status
//   - Group: a tontine owned by one account, holding the current turn index
//   - Member: a participant in a group, ordered densely 1..N
//   - TurnRecord: an append-only record of one payout
//   - Payment: a submitted payment proof awaiting administrator validation
//   - PaymentAlert: a one-way nudge from an administrator
//
// Amounts are whole FCFA (the currency has no subunit) stored as int64.
//
// Relationships use ID strings instead of pointers. Every entity has a
// Validate method that storage implementations call before writing and after
// reading, so malformed rows are rejected at the boundary.
package models
