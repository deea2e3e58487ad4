package runner

import (
	"fmt"
	"regexp"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

var embeddedRef = regexp.MustCompile(`<([^<>\s]+)>`)

// ResolveParams builds the parameter map for one execution.
//
// Sources are applied in order, later ones overriding earlier ones on key
// collision: the global table at globalRow, the local table at localRow, then
// the inline parameters. A cell whose whole value is "<col>" is resolved
// against the global table at globalRow. Inline parameters may also embed
// "<col>" tokens, which are substituted from the values resolved so far.
func ResolveParams(global *types.DataTable, globalRow int, local *types.DataTable, localRow int, inline map[string]string) (map[string]string, error) {
	params := make(map[string]string)

	for _, col := range global.Columns() {
		v, ok := global.Value(col, globalRow)
		if !ok {
			return nil, fmt.Errorf("global table has no row %d for column %q", globalRow, col)
		}
		params[col] = v
	}

	for _, col := range local.Columns() {
		v, ok := local.Value(col, localRow)
		if !ok {
			return nil, fmt.Errorf("local table has no row %d for column %q", localRow, col)
		}
		resolved, err := resolveReference(global, globalRow, v)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}
		params[col] = resolved
	}

	for key, v := range inline {
		if _, isRef := types.Reference(v); isRef {
			resolved, err := resolveReference(global, globalRow, v)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %w", key, err)
			}
			params[key] = resolved
			continue
		}
		params[key] = substitute(v, params)
	}
	return params, nil
}

func resolveReference(global *types.DataTable, globalRow int, v string) (string, error) {
	col, ok := types.Reference(v)
	if !ok {
		return v, nil
	}
	resolved, ok := global.Value(col, globalRow)
	if !ok {
		return "", fmt.Errorf("reference %s does not name a global column with row %d", v, globalRow)
	}
	return resolved, nil
}

// substitute replaces embedded <col> tokens with known values and leaves
// unknown tokens untouched.
func substitute(v string, values map[string]string) string {
	return embeddedRef.ReplaceAllStringFunc(v, func(tok string) string {
		if resolved, ok := values[tok[1:len(tok)-1]]; ok {
			return resolved
		}
		return tok
	})
}
