// Package ops declares the concrete data-retrieving operations the plugin
// host may invoke. Each operation is a descriptor (name, allowed roles,
// cache policy) plus a pure formatter, composed with the shared mediator;
// none of them touch the store or the cache directly.
package ops

import (
	"fmt"
	"strings"
	"time"

	"github.com/clientbridge/clientbridge/internal/mediator"
	"github.com/clientbridge/clientbridge/internal/store"
)

// Operation couples a pipeline descriptor with the argument binding that
// turns host-supplied named arguments into positional query parameters.
type Operation struct {
	Descriptor mediator.Descriptor
	// Bind extracts the positional parameters and the target client id
	// from the host's named arguments.
	Bind func(args map[string]any) (params []any, clientID string)
}

// Registry indexes operations by name.
type Registry struct {
	byName map[string]Operation
	names  []string
}

// NewRegistry builds the production operation set. defaultTTL applies to
// cacheable operations that do not carry their own TTL.
func NewRegistry(defaultTTL time.Duration) *Registry {
	ops := []Operation{
		clientNotes(defaultTTL),
		allNotes(defaultTTL),
		transactionCount(defaultTTL),
		totalAmountPaid(defaultTTL),
		paymentHistory(defaultTTL),
		contractStatus(defaultTTL),
		clientSummary(defaultTTL),
	}
	r := &Registry{byName: make(map[string]Operation, len(ops))}
	for _, op := range ops {
		r.byName[op.Descriptor.Name] = op
		r.names = append(r.names, op.Descriptor.Name)
	}
	return r
}

// Lookup returns the operation registered under name.
func (r *Registry) Lookup(name string) (Operation, bool) {
	op, ok := r.byName[name]
	return op, ok
}

// Names lists registered operation names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// --- argument helpers ---

func stringArg(args map[string]any, name string) string {
	v, ok := args[name]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// intArg reads a numeric argument, tolerating the float64 that JSON
// decoding produces.
func intArg(args map[string]any, name string, fallback int) int {
	switch v := args[name].(type) {
	case int:
		if v > 0 {
			return v
		}
	case int64:
		if v > 0 {
			return int(v)
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	}
	return fallback
}

// --- row value helpers ---

func rowString(row store.Row, column string) string {
	switch v := row[column].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func rowInt(row store.Row, column string) int64 {
	switch v := row[column].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func rowFloat(row store.Row, column string) float64 {
	switch v := row[column].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%f", &f); err == nil {
			return f
		}
	}
	return 0
}

func rowTime(row store.Row, column string) string {
	switch v := row[column].(type) {
	case time.Time:
		return v.Format("2006-01-02 15:04")
	case string:
		return v
	}
	return ""
}
