package ops

import (
	"fmt"
	"time"

	"github.com/clientbridge/clientbridge/internal/mediator"
	"github.com/clientbridge/clientbridge/internal/permissions"
	"github.com/clientbridge/clientbridge/internal/store"
)

// clientSummary renders a one-row overview of a client.
func clientSummary(ttl time.Duration) Operation {
	return Operation{
		Descriptor: mediator.Descriptor{
			Name:          "get_client_summary",
			AllowedRoles:  []permissions.Role{permissions.RoleAdmin, permissions.RoleSales, permissions.RoleFinance},
			Required:      []string{"client_id"},
			Cacheable:     true,
			CacheTTL:      ttl,
			MaxRows:       1,
			TargetsClient: true,
			Format: func(rows []store.Row, req mediator.Request) string {
				if len(rows) == 0 {
					return fmt.Sprintf("No client found with id %s.", req.ClientID)
				}
				row := rows[0]
				return fmt.Sprintf("Client %s (%s)\nSegment: %s\nCustomer since: %s\nNotes on file: %d | Contracts: %d",
					rowString(row, "name"),
					req.ClientID,
					rowString(row, "segment"),
					rowTime(row, "created_date"),
					rowInt(row, "note_count"),
					rowInt(row, "contract_count"),
				)
			},
		},
		Bind: func(args map[string]any) ([]any, string) {
			clientID := stringArg(args, "client_id")
			return []any{clientID}, clientID
		},
	}
}
