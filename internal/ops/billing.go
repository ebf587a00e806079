package ops

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/clientbridge/clientbridge/internal/mediator"
	"github.com/clientbridge/clientbridge/internal/permissions"
	"github.com/clientbridge/clientbridge/internal/store"
)

const defaultPaymentsLimit = 50

// amounts grow past the thousands; grouping keeps them readable.
var amountPrinter = message.NewPrinter(language.English)

// transactionCount reports how many payments a client has on record.
func transactionCount(ttl time.Duration) Operation {
	return Operation{
		Descriptor: mediator.Descriptor{
			Name:          "get_transaction_count",
			AllowedRoles:  []permissions.Role{permissions.RoleAdmin, permissions.RoleFinance, permissions.RoleSales},
			Required:      []string{"client_id"},
			Cacheable:     true,
			CacheTTL:      ttl,
			TargetsClient: true,
			Format: func(rows []store.Row, req mediator.Request) string {
				if len(rows) == 0 {
					return fmt.Sprintf("No transaction data found for client %s.", req.ClientID)
				}
				count := rowInt(rows[0], "transaction_count")
				return amountPrinter.Sprintf("Client %s has %d recorded transactions.", req.ClientID, count)
			},
		},
		Bind: func(args map[string]any) ([]any, string) {
			clientID := stringArg(args, "client_id")
			return []any{clientID}, clientID
		},
	}
}

// totalAmountPaid sums a client's completed payments.
func totalAmountPaid(ttl time.Duration) Operation {
	return Operation{
		Descriptor: mediator.Descriptor{
			Name:          "get_total_amount_paid",
			AllowedRoles:  []permissions.Role{permissions.RoleAdmin, permissions.RoleFinance},
			Required:      []string{"client_id"},
			Cacheable:     true,
			CacheTTL:      ttl,
			TargetsClient: true,
			Format: func(rows []store.Row, req mediator.Request) string {
				if len(rows) == 0 {
					return fmt.Sprintf("No payment data found for client %s.", req.ClientID)
				}
				total := rowFloat(rows[0], "total_paid")
				count := rowInt(rows[0], "payment_count")
				return amountPrinter.Sprintf("Client %s has paid $%.2f across %d completed payments.", req.ClientID, total, count)
			},
		},
		Bind: func(args map[string]any) ([]any, string) {
			clientID := stringArg(args, "client_id")
			return []any{clientID}, clientID
		},
	}
}

// paymentHistory lists a client's recent payments.
func paymentHistory(ttl time.Duration) Operation {
	return Operation{
		Descriptor: mediator.Descriptor{
			Name:          "get_payment_history",
			AllowedRoles:  []permissions.Role{permissions.RoleAdmin, permissions.RoleFinance},
			Required:      []string{"client_id"},
			Cacheable:     true,
			CacheTTL:      ttl,
			TargetsClient: true,
			Format: func(rows []store.Row, req mediator.Request) string {
				if len(rows) == 0 {
					return fmt.Sprintf("No payments found for client %s.", req.ClientID)
				}
				var b strings.Builder
				fmt.Fprintf(&b, "%d payments for client %s:\n\n", len(rows), req.ClientID)
				for _, row := range rows {
					amountPrinter.Fprintf(&b, "[%s] $%.2f via %s\nRef: %s | Status: %s\n\n",
						rowTime(row, "payment_date"),
						rowFloat(row, "amount"),
						rowString(row, "method"),
						rowString(row, "reference"),
						rowString(row, "status"),
					)
				}
				return strings.TrimRight(b.String(), "\n")
			},
		},
		Bind: func(args map[string]any) ([]any, string) {
			clientID := stringArg(args, "client_id")
			limit := intArg(args, "limit", defaultPaymentsLimit)
			return []any{clientID, limit}, clientID
		},
	}
}
