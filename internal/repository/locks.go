package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
)

// lockSlotResources serializes writers competing for the same staff and room
// slots. Row locks alone cannot do this: when the slot is free there is no row
// to lock, so two transactions can both pass the overlap check and both
// insert. A transaction-scoped advisory lock per (org, resource, date) closes
// that window; the lock is released automatically at commit or rollback.
// Keys are sorted before locking so concurrent callers acquire them in the
// same order.
func lockSlotResources(ctx context.Context, exec sqlx.ExtContext, orgID, date string, staffID, roomID *string) error {
	var keys []string
	if staffID != nil {
		keys = append(keys, fmt.Sprintf("slot:%s:staff:%s:%s", orgID, *staffID, date))
	}
	if roomID != nil {
		keys = append(keys, fmt.Sprintf("slot:%s:room:%s:%s", orgID, *roomID, date))
	}
	if len(keys) == 0 {
		return fmt.Errorf("slot lock requires staff or room")
	}
	sort.Strings(keys)

	const query = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`
	for _, key := range keys {
		if _, err := exec.ExecContext(ctx, query, key); err != nil {
			return fmt.Errorf("acquire slot lock %s: %w", key, err)
		}
	}
	return nil
}

// LockSlot takes the advisory locks guarding a hold's slot. Must run inside
// the transaction that checks for conflicts.
func (r *HoldRepository) LockSlot(ctx context.Context, exec sqlx.ExtContext, orgID, date string, staffID, roomID *string) error {
	return lockSlotResources(ctx, r.exec(exec), orgID, date, staffID, roomID)
}

// LockSlot takes the advisory locks guarding a session's slot. Must run inside
// the transaction that checks for conflicts.
func (r *SessionRepository) LockSlot(ctx context.Context, exec sqlx.ExtContext, orgID, date string, staffID, roomID *string) error {
	return lockSlotResources(ctx, r.exec(exec), orgID, date, staffID, roomID)
}
