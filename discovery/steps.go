package discovery

import (
	"errors"
	"fmt"
	"maps"
	"regexp"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

var quoted = regexp.MustCompile(`"([^"]*)"`)

// NormalizePattern collapses every quoted literal of a step text to "" and
// returns the literals in order.
func NormalizePattern(text string) (string, []string) {
	var args []string
	for _, m := range quoted.FindAllStringSubmatch(text, -1) {
		args = append(args, m[1])
	}
	return quoted.ReplaceAllString(text, `""`), args
}

func argParams(args []string) map[string]string {
	params := make(map[string]string, len(args))
	for i, a := range args {
		params[fmt.Sprintf("arg%d", i)] = a
	}
	return params
}

// Scenarios returns copies of the scenarios that belong to groups, with every
// step bound to its registered implementation. Background scenarios are always
// kept. Unbound steps, invalid tables and dangling column references are
// reported together.
func (r *Registry) Scenarios(scenarios []*types.Scenario, groups []string) ([]*types.Scenario, error) {
	var (
		out  []*types.Scenario
		errs []error
	)
	for _, sc := range scenarios {
		if sc == nil {
			continue
		}
		if !sc.IsBackground && !r.belongs(sc.Groups, groups) {
			continue
		}
		bound, err := r.bindScenario(sc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, bound)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	r.config.Log.Debug("Resolved scenarios", "groups", groups, "declared", len(scenarios), "selected", len(out))
	return out, nil
}

func (r *Registry) bindScenario(sc *types.Scenario) (*types.Scenario, error) {
	cp := *sc
	cp.Outcomes = nil
	cp.Steps = make([]*types.Step, 0, len(sc.Steps))

	var errs []error
	if err := sc.Examples.Validate(); err != nil {
		errs = append(errs, &types.ConfigError{Descriptor: sc.Description, Err: err})
	}
	for _, step := range sc.Steps {
		name := sc.Description + ": " + step.Keyword + " " + step.Text
		unit, args, ok := r.Step(step.Text)
		if !ok {
			pattern, _ := NormalizePattern(step.Text)
			errs = append(errs, types.NewConfigError(name, "no step registered for pattern %q", pattern))
			continue
		}
		if err := step.Table.Validate(); err != nil {
			errs = append(errs, &types.ConfigError{Descriptor: name, Err: err})
			continue
		}
		if unit.DataProviderName != "" {
			r.mu.RLock()
			data, err := r.bindData(name, unit.DataProviderName, unit.Data)
			r.mu.RUnlock()
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if err := checkReferences(name, data, sc.Examples); err != nil {
				errs = append(errs, err)
			}
			bound := *unit
			bound.Data = data
			unit = &bound
		}
		if err := checkReferences(name, step.Table, sc.Examples); err != nil {
			errs = append(errs, err)
		}
		params := args
		maps.Copy(params, step.Params)
		for k, v := range params {
			if ref, isRef := types.Reference(v); isRef {
				if _, found := sc.Examples.Column(ref); !found {
					errs = append(errs, types.NewConfigError(name, "parameter %s references unknown column <%s>", k, ref))
				}
			}
		}

		s := *step
		s.Unit = unit
		s.Params = params
		cp.Steps = append(cp.Steps, &s)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &cp, nil
}
