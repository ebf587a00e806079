package ops

import (
	"fmt"
	"strings"
	"time"

	"github.com/clientbridge/clientbridge/internal/mediator"
	"github.com/clientbridge/clientbridge/internal/permissions"
	"github.com/clientbridge/clientbridge/internal/store"
)

const defaultNotesLimit = 100

// clientNotes returns the most recent notes for a client.
func clientNotes(ttl time.Duration) Operation {
	return Operation{
		Descriptor: mediator.Descriptor{
			Name:          "get_client_notes",
			AllowedRoles:  []permissions.Role{permissions.RoleAdmin, permissions.RoleSales, permissions.RoleSupport},
			Required:      []string{"client_id"},
			Cacheable:     true,
			CacheTTL:      ttl,
			MaxRows:       25,
			TargetsClient: true,
			Format:        formatNotes,
		},
		Bind: func(args map[string]any) ([]any, string) {
			clientID := stringArg(args, "client_id")
			return []any{clientID}, clientID
		},
	}
}

// allNotes returns the full note history for a client, capped by the limit
// argument.
func allNotes(ttl time.Duration) Operation {
	return Operation{
		Descriptor: mediator.Descriptor{
			Name:          "get_all_notes",
			AllowedRoles:  []permissions.Role{permissions.RoleAdmin, permissions.RoleSales, permissions.RoleSupport},
			Required:      []string{"client_id"},
			Cacheable:     true,
			CacheTTL:      ttl,
			TargetsClient: true,
			Format:        formatNotes,
		},
		Bind: func(args map[string]any) ([]any, string) {
			clientID := stringArg(args, "client_id")
			limit := intArg(args, "limit", defaultNotesLimit)
			return []any{clientID, limit}, clientID
		},
	}
}

func formatNotes(rows []store.Row, req mediator.Request) string {
	if len(rows) == 0 {
		return fmt.Sprintf("No notes found for client %s.", req.ClientID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d notes for client %s:\n\n", len(rows), req.ClientID)
	for _, row := range rows {
		fmt.Fprintf(&b, "[%s] %s\n%s\nBy: %s | Status: %s\n\n",
			rowTime(row, "created_date"),
			rowString(row, "action_type"),
			rowString(row, "note_text"),
			rowString(row, "created_by"),
			rowString(row, "status"),
		)
	}
	return strings.TrimRight(b.String(), "\n")
}
