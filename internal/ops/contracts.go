package ops

import (
	"fmt"
	"strings"
	"time"

	"github.com/clientbridge/clientbridge/internal/mediator"
	"github.com/clientbridge/clientbridge/internal/permissions"
	"github.com/clientbridge/clientbridge/internal/store"
)

// contractStatus lists a client's contracts with their current status.
func contractStatus(ttl time.Duration) Operation {
	return Operation{
		Descriptor: mediator.Descriptor{
			Name:          "get_contract_status",
			AllowedRoles:  []permissions.Role{permissions.RoleAdmin, permissions.RoleSales},
			Required:      []string{"client_id"},
			Cacheable:     true,
			CacheTTL:      ttl,
			TargetsClient: true,
			Format: func(rows []store.Row, req mediator.Request) string {
				if len(rows) == 0 {
					return fmt.Sprintf("No contracts found for client %s.", req.ClientID)
				}
				var b strings.Builder
				fmt.Fprintf(&b, "%d contracts for client %s:\n\n", len(rows), req.ClientID)
				for _, row := range rows {
					amountPrinter.Fprintf(&b, "%s: %s ($%.2f)\n%s to %s\n\n",
						rowString(row, "contract_number"),
						rowString(row, "status"),
						rowFloat(row, "value"),
						rowTime(row, "start_date"),
						rowTime(row, "end_date"),
					)
				}
				return strings.TrimRight(b.String(), "\n")
			},
		},
		Bind: func(args map[string]any) ([]any, string) {
			clientID := stringArg(args, "client_id")
			return []any{clientID}, clientID
		},
	}
}
