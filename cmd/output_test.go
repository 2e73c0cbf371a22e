package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	v := struct {
		Name   string         `json:"name"`
		Code   string         `json:"code"`
		Counts map[string]int `json:"counts"`
		Items  []int          `json:"items"`
	}{
		Name:   "shop",
		Code:   "123",
		Counts: map[string]int{"b": 2, "a": 1},
		Items:  []int{},
	}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, render(&buf, formatJSON, v))
		assert.Equal(t, `{
  "name": "shop",
  "code": "123",
  "counts": {
    "a": 1,
    "b": 2
  },
  "items": []
}
`, buf.String())
	})

	t.Run("yaml keeps member order and string types", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, render(&buf, formatYAML, v))
		assert.Equal(t, `name: shop
code: "123"
counts:
  a: 1
  b: 2
items: []
`, buf.String())
	})

	t.Run("unsupported", func(t *testing.T) {
		assert.EqualError(t, render(&bytes.Buffer{}, "toml", v), "unsupported output format: toml")
		assert.Error(t, checkOutputFormat("toml"))
	})
}
