package core_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/entitydoc/pkg/core"
)

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"whole float", 3.0, 3},
		{"fraction", 2.5, 2.5},
		{"int64", int64(9), 9},
		{"json int", json.Number("12"), 12},
		{"json float", json.Number("0.25"), 0.25},
		{"json whole float", json.Number("4.0"), 4},
		{"nested", map[string]any{"a": []any{1.0, "x"}}, map[string]any{"a": []any{1, "x"}}},
		{"string", "5", "5"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, core.NormalizeValue(tc.in))
		})
	}
}

func TestNormalizeNumbers(t *testing.T) {
	e := core.NormalizeNumbers(core.Entity{Fields: core.Fields{
		"count": {"en": 2.0},
		"empty": nil,
	}})
	assert.Equal(t, 2, e.Fields["count"]["en"])
	assert.NotNil(t, e.Fields["empty"])

	assert.NotNil(t, core.NormalizeNumbers(core.Entity{}).Fields)
}

func TestNewID(t *testing.T) {
	a, b := core.NewID(), core.NewID()
	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}
