package ops

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clientbridge/clientbridge/internal/mediator"
	"github.com/clientbridge/clientbridge/internal/permissions"
	"github.com/clientbridge/clientbridge/internal/store"
)

func TestRegistryCoversAllOperations(t *testing.T) {
	reg := NewRegistry(5 * time.Minute)

	want := []string{
		"get_client_notes",
		"get_all_notes",
		"get_transaction_count",
		"get_total_amount_paid",
		"get_payment_history",
		"get_contract_status",
		"get_client_summary",
	}
	require.Equal(t, want, reg.Names())

	for _, name := range want {
		op, ok := reg.Lookup(name)
		require.True(t, ok)
		require.Equal(t, name, op.Descriptor.Name)
		require.NotNil(t, op.Descriptor.Format)
		require.NotNil(t, op.Bind)
		require.True(t, op.Descriptor.TargetsClient)
		require.Contains(t, op.Descriptor.Required, "client_id")
	}

	_, ok := reg.Lookup("get_everything")
	require.False(t, ok)
}

func TestAllowedRolesMatchAccessTables(t *testing.T) {
	reg := NewRegistry(time.Minute)
	perms := permissions.NewRegistry()

	for _, name := range reg.Names() {
		op, _ := reg.Lookup(name)
		for _, role := range op.Descriptor.AllowedRoles {
			require.True(t, perms.CanAccessFunction(role, name), "%s should allow %s", name, role)
		}
	}
}

func TestAllNotesBinding(t *testing.T) {
	reg := NewRegistry(time.Minute)
	op, _ := reg.Lookup("get_all_notes")

	params, clientID := op.Bind(map[string]any{"client_id": " C-42 ", "limit": float64(10)})
	require.Equal(t, "C-42", clientID)
	require.Equal(t, []any{"C-42", 10}, params)

	// Missing or non-positive limit falls back to the default.
	params, _ = op.Bind(map[string]any{"client_id": "C-42"})
	require.Equal(t, []any{"C-42", defaultNotesLimit}, params)
	params, _ = op.Bind(map[string]any{"client_id": "C-42", "limit": float64(-5)})
	require.Equal(t, []any{"C-42", defaultNotesLimit}, params)
}

func TestNotesFormatting(t *testing.T) {
	reg := NewRegistry(time.Minute)
	op, _ := reg.Lookup("get_all_notes")
	req := mediator.Request{ClientID: "C-1"}

	require.Equal(t, "No notes found for client C-1.", op.Descriptor.Format(nil, req))

	rows := []store.Row{
		{
			"created_date": time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
			"action_type":  "call",
			"note_text":    "Discussed renewal terms",
			"created_by":   "jmartin",
			"status":       "open",
		},
	}
	out := op.Descriptor.Format(rows, req)
	require.Contains(t, out, "1 notes for client C-1")
	require.Contains(t, out, "[2026-03-14 09:30] call")
	require.Contains(t, out, "Discussed renewal terms")
	require.Contains(t, out, "By: jmartin | Status: open")
}

func TestTotalAmountPaidFormatting(t *testing.T) {
	reg := NewRegistry(time.Minute)
	op, _ := reg.Lookup("get_total_amount_paid")
	req := mediator.Request{ClientID: "C-7"}

	rows := []store.Row{{"total_paid": 1234567.891, "payment_count": int64(42)}}
	out := op.Descriptor.Format(rows, req)
	require.Contains(t, out, "$1,234,567.89")
	require.Contains(t, out, "42 completed payments")

	require.Equal(t, "No payment data found for client C-7.", op.Descriptor.Format(nil, req))
}

func TestTransactionCountFormatting(t *testing.T) {
	reg := NewRegistry(time.Minute)
	op, _ := reg.Lookup("get_transaction_count")
	req := mediator.Request{ClientID: "C-7"}

	out := op.Descriptor.Format([]store.Row{{"transaction_count": int64(1250)}}, req)
	require.Contains(t, out, "1,250 recorded transactions")
}

func TestClientSummaryFormatting(t *testing.T) {
	reg := NewRegistry(time.Minute)
	op, _ := reg.Lookup("get_client_summary")
	req := mediator.Request{ClientID: "C-3"}

	rows := []store.Row{{
		"name":           "Acme Corp",
		"segment":        "enterprise",
		"created_date":   time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC),
		"note_count":     int64(12),
		"contract_count": int64(3),
	}}
	out := op.Descriptor.Format(rows, req)
	require.Contains(t, out, "Acme Corp")
	require.Contains(t, out, "Segment: enterprise")
	require.Contains(t, out, "Notes on file: 12 | Contracts: 3")

	require.Equal(t, "No client found with id C-3.", op.Descriptor.Format(nil, req))
}

func TestContractStatusFormatting(t *testing.T) {
	reg := NewRegistry(time.Minute)
	op, _ := reg.Lookup("get_contract_status")
	req := mediator.Request{ClientID: "C-5"}

	rows := []store.Row{{
		"contract_number": "CN-2026-001",
		"status":          "active",
		"value":           50000.0,
		"start_date":      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		"end_date":        time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
	}}
	out := op.Descriptor.Format(rows, req)
	require.Contains(t, out, "CN-2026-001: active ($50,000.00)")
	require.Contains(t, out, "2026-01-01 00:00 to 2026-12-31 00:00")
}

func TestRowHelpersTolerateDriverTypes(t *testing.T) {
	row := store.Row{
		"a": "text",
		"b": int32(7),
		"c": "123.45",
		"d": nil,
	}
	require.Equal(t, "text", rowString(row, "a"))
	require.EqualValues(t, 7, rowInt(row, "b"))
	require.InDelta(t, 123.45, rowFloat(row, "c"), 0.001)
	require.Equal(t, "", rowString(row, "d"))
	require.Equal(t, "", rowTime(row, "missing"))
}
