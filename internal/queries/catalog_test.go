package queries

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbeddedCatalogCoversAllOperations(t *testing.T) {
	catalog, err := Load("")
	require.NoError(t, err)

	for _, op := range []string{
		"get_client_notes",
		"get_all_notes",
		"get_transaction_count",
		"get_total_amount_paid",
		"get_payment_history",
		"get_contract_status",
		"get_client_summary",
	} {
		sql, ok := catalog.Lookup(op)
		require.True(t, ok, "missing template for %s", op)
		require.NotEmpty(t, sql)
	}
}

func TestLookupMissingEntry(t *testing.T) {
	catalog, err := Load("")
	require.NoError(t, err)

	_, ok := catalog.Lookup("get_everything")
	require.False(t, ok)
}

func TestFileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ping": "SELECT 1"}`), 0o600))

	catalog, err := Load(path)
	require.NoError(t, err)

	sql, ok := catalog.Lookup("ping")
	require.True(t, ok)
	require.Equal(t, "SELECT 1", sql)

	_, ok = catalog.Lookup("get_all_notes")
	require.False(t, ok, "override replaces the embedded catalog")
}

func TestParseRejectsMalformedCatalog(t *testing.T) {
	_, err := Parse([]byte(`{"broken":`))
	require.Error(t, err)
}
