// Package permissions holds the static role-based access tables: which roles
// may call which operations, how many queries per window each role gets, and
// which slices of client data a role may see. Values are fixed at process
// start and safe for unsynchronized concurrent reads.
package permissions

// Role represents a high-level permission grouping.
type Role string

// Available caller roles.
const (
	RoleAdmin    Role = "admin"
	RoleSales    Role = "sales"
	RoleSupport  Role = "support"
	RoleFinance  Role = "finance"
	RoleReadonly Role = "readonly"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSales, RoleSupport, RoleFinance, RoleReadonly:
		return true
	}
	return false
}

// DataAccess describes the data visibility granted to a role.
type DataAccess struct {
	// ViewAllClients grants access to every client record; roles without it
	// are limited to clients mapped to them in user_client_access.
	ViewAllClients bool
	// ViewFinancials grants access to payment and invoice data.
	ViewFinancials bool
	// Tables lists the relations the role may read. Nil means all tables.
	Tables []string
}

// defaultRateLimit applies to unknown roles; deliberately conservative.
const defaultRateLimit = 100

// Registry answers authorization questions from static tables.
type Registry struct {
	functions  map[string][]Role
	rateLimits map[Role]int
	dataAccess map[Role]DataAccess
}

// NewRegistry builds the registry with the production tables.
func NewRegistry() *Registry {
	return &Registry{
		functions: map[string][]Role{
			"get_client_notes":      {RoleAdmin, RoleSales, RoleSupport},
			"get_all_notes":         {RoleAdmin, RoleSales, RoleSupport},
			"get_transaction_count": {RoleAdmin, RoleFinance, RoleSales},
			"get_total_amount_paid": {RoleAdmin, RoleFinance},
			"get_payment_history":   {RoleAdmin, RoleFinance},
			"get_contract_status":   {RoleAdmin, RoleSales},
			"get_client_summary":    {RoleAdmin, RoleSales, RoleFinance},
		},
		rateLimits: map[Role]int{
			RoleAdmin:    1000,
			RoleSales:    500,
			RoleSupport:  500,
			RoleFinance:  300,
			RoleReadonly: 100,
		},
		dataAccess: map[Role]DataAccess{
			RoleAdmin: {
				ViewAllClients: true,
				ViewFinancials: true,
				Tables:         nil,
			},
			RoleSales: {
				ViewAllClients: true,
				Tables:         []string{"notes", "contracts", "clients"},
			},
			RoleSupport: {
				Tables: []string{"notes", "tickets"},
			},
			RoleFinance: {
				ViewAllClients: true,
				ViewFinancials: true,
				Tables:         []string{"payments", "invoices", "contracts"},
			},
			RoleReadonly: {
				Tables: []string{},
			},
		},
	}
}

// CanAccessFunction reports whether the role may call the named operation.
// Admin bypasses function-level checks; operations without an entry are
// denied for everyone else.
func (r *Registry) CanAccessFunction(role Role, operation string) bool {
	if role == RoleAdmin {
		return true
	}
	for _, allowed := range r.functions[operation] {
		if allowed == role {
			return true
		}
	}
	return false
}

// RateLimit returns the role's queries-per-window limit.
func (r *Registry) RateLimit(role Role) int {
	if limit, ok := r.rateLimits[role]; ok {
		return limit
	}
	return defaultRateLimit
}

// CanViewAllClients reports whether the role may read any client's records.
func (r *Registry) CanViewAllClients(role Role) bool {
	return r.dataAccess[role].ViewAllClients
}

// CanViewFinancials reports whether the role may read financial records.
func (r *Registry) CanViewFinancials(role Role) bool {
	return r.dataAccess[role].ViewFinancials
}

// Tables returns the relations the role may read; nil means unrestricted.
func (r *Registry) Tables(role Role) []string {
	access, ok := r.dataAccess[role]
	if !ok {
		return []string{}
	}
	return access.Tables
}
