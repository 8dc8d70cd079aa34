package filter

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/OrlandoBitencourt/flare/internal/domain"
)

// Config defines which fetched entries enter the snapshot
type Config struct {
	// OnlyEnabled drops entries whose value is false
	OnlyEnabled bool

	// Expression is an optional boolean expr program evaluated per entry.
	// Available variables: key, value, variant, reason, scopeAlias.
	Expression string
}

// Validate compiles the expression without keeping the program
func (c Config) Validate() error {
	_, err := New(c)
	return err
}

// env is the expression environment for one entry
type env struct {
	Key        string `expr:"key"`
	Value      bool   `expr:"value"`
	Variant    string `expr:"variant"`
	Reason     string `expr:"reason"`
	ScopeAlias string `expr:"scopeAlias"`
}

func newEnv(entry domain.FlagEntry) env {
	e := env{
		Key:     entry.Key,
		Value:   entry.Value,
		Variant: entry.VariantOrEmpty(),
		Reason:  entry.Reason,
	}
	if entry.Metadata != nil && entry.Metadata.ScopeAlias != nil {
		e.ScopeAlias = *entry.Metadata.ScopeAlias
	}
	return e
}

// Filter decides which entries are published to the snapshot
type Filter struct {
	onlyEnabled bool
	program     *vm.Program
}

// New compiles cfg into a Filter. A zero Config keeps every entry.
func New(cfg Config) (*Filter, error) {
	f := &Filter{onlyEnabled: cfg.OnlyEnabled}

	if strings.TrimSpace(cfg.Expression) == "" {
		return f, nil
	}

	program, err := expr.Compile(cfg.Expression, expr.Env(env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("failed to compile filter expression: %w", err)
	}
	f.program = program

	return f, nil
}

// Keep reports whether entry should enter the snapshot
func (f *Filter) Keep(entry domain.FlagEntry) (bool, error) {
	if f == nil {
		return true, nil
	}

	if f.onlyEnabled && !entry.Value {
		return false, nil
	}

	if f.program == nil {
		return true, nil
	}

	result, err := expr.Run(f.program, newEnv(entry))
	if err != nil {
		return false, fmt.Errorf("filter expression failed for flag %q: %w", entry.Key, err)
	}

	keep, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("filter expression returned non-boolean: %T", result)
	}

	return keep, nil
}

// Apply returns the entries that pass the filter. Entries whose
// evaluation fails are excluded and their errors returned alongside.
func (f *Filter) Apply(entries []domain.FlagEntry) ([]domain.FlagEntry, []error) {
	if f == nil || (!f.onlyEnabled && f.program == nil) {
		return entries, nil
	}

	kept := make([]domain.FlagEntry, 0, len(entries))
	var errs []error
	for _, entry := range entries {
		keep, err := f.Keep(entry)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if keep {
			kept = append(kept, entry)
		}
	}

	return kept, errs
}
