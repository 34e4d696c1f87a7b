package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "products.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())

	p, ok := c.Lookup("A100")
	require.True(t, ok)
	assert.Equal(t, "Anchor bolt M12x120", p.Description)
	assert.Equal(t, "box", p.Unit)

	assert.Equal(t, "Safety gloves size L", c.Describe("C305"))
	assert.Empty(t, c.Describe("ZZ999"))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "nope.yaml"))
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("products:\n  - description: no code here\n"))
	assert.ErrorContains(t, err, "has no code")

	_, err = Parse([]byte("products:\n  - code: A100\n  - code: A100\n"))
	assert.ErrorContains(t, err, "duplicate product code")

	_, err = Parse([]byte("products: {"))
	assert.Error(t, err)
}

func TestEmpty(t *testing.T) {
	c := Empty()
	assert.Equal(t, 0, c.Len())
	_, ok := c.Lookup("A100")
	assert.False(t, ok)
}
