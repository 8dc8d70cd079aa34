package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OrlandoBitencourt/flare/internal/domain"
)

func strPtr(s string) *string { return &s }

func entries() []domain.FlagEntry {
	return []domain.FlagEntry{
		{Key: "checkout-v2", Value: true, Variant: strPtr("on"), Reason: "TARGETING_MATCH"},
		{Key: "checkout-legacy", Value: false, Reason: "DISABLED"},
		{Key: "search", Value: true, Reason: "STATIC",
			Metadata: &domain.FlagMetadata{ScopeAlias: strPtr("staging")}},
	}
}

func keys(list []domain.FlagEntry) []string {
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.Key
	}
	return out
}

func TestFilter_ZeroConfigKeepsAll(t *testing.T) {
	f, err := New(Config{})
	require.NoError(t, err)

	kept, errs := f.Apply(entries())
	assert.Empty(t, errs)
	assert.Len(t, kept, 3)
}

func TestFilter_OnlyEnabled(t *testing.T) {
	f, err := New(Config{OnlyEnabled: true})
	require.NoError(t, err)

	kept, errs := f.Apply(entries())
	assert.Empty(t, errs)
	assert.Equal(t, []string{"checkout-v2", "search"}, keys(kept))
}

func TestFilter_Expression(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		want       []string
	}{
		{"prefix", `key startsWith "checkout-"`, []string{"checkout-v2", "checkout-legacy"}},
		{"reason", `reason != "DISABLED"`, []string{"checkout-v2", "search"}},
		{"variant", `variant == "on"`, []string{"checkout-v2"}},
		{"scope alias", `scopeAlias == "staging"`, []string{"search"}},
		{"combined", `key startsWith "checkout-" && value`, []string{"checkout-v2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(Config{Expression: tt.expression})
			require.NoError(t, err)

			kept, errs := f.Apply(entries())
			assert.Empty(t, errs)
			assert.Equal(t, tt.want, keys(kept))
		})
	}
}

func TestFilter_InvalidExpression(t *testing.T) {
	_, err := New(Config{Expression: `key +`})
	assert.Error(t, err)

	// Non-boolean result is rejected at compile time
	_, err = New(Config{Expression: `key`})
	assert.Error(t, err)

	// Unknown variable
	assert.Error(t, Config{Expression: `owner == "me"`}.Validate())
	assert.NoError(t, Config{Expression: `value`}.Validate())
}

func TestFilter_NilKeepsAll(t *testing.T) {
	var f *Filter
	keep, err := f.Keep(domain.FlagEntry{Key: "a"})
	require.NoError(t, err)
	assert.True(t, keep)
}
