package admin

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storegate/pkg/config"
)

var noopController = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

func TestRegistryRejectsBadRegistrations(t *testing.T) {
	r := NewRegistry()

	err := r.Register("", noopController, "Nothing", "")
	assert.ErrorIs(t, err, config.ErrConfiguration)

	err = r.Register("products", nil, "Products", "")
	assert.ErrorIs(t, err, config.ErrConfiguration)

	require.NoError(t, r.Register("products", noopController, "Products", "package"))
	err = r.Register("products", noopController, "Products again", "package")
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestRegistryMenuKeepsRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("products", noopController, "Products", "package"))
	require.NoError(t, r.Register("orders", noopController, "Orders", "cart"))
	require.NoError(t, r.Register("customers", noopController, "Customers", "users"))

	var got []MenuEntry
	r.Menu(func(e MenuEntry) bool {
		got = append(got, e)
		return true
	})

	require.Len(t, got, 3)
	assert.Equal(t, "products", got[0].EntityType)
	assert.Equal(t, "orders", got[1].EntityType)
	assert.Equal(t, "customers", got[2].EntityType)
	assert.Equal(t, "Orders", got[1].Label)
	assert.Equal(t, "cart", got[1].Icon)
}

func TestRegistryMenuStopsWhenYieldReturnsFalse(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("products", noopController, "Products", ""))
	require.NoError(t, r.Register("orders", noopController, "Orders", ""))

	seen := 0
	r.Menu(func(MenuEntry) bool {
		seen++
		return false
	})
	assert.Equal(t, 1, seen)
}

func TestRegistryControllerLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("products", noopController, "Products", ""))

	_, ok := r.Controller("products")
	assert.True(t, ok)
	_, ok = r.Controller("unknown")
	assert.False(t, ok)
}

func TestImportDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "products.yaml"),
		[]byte("type: products\nlabel: Products\nicon: package\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders.json"),
		[]byte(`{"type":"orders","label":"Orders"}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"),
		[]byte("ignored"), 0o600))

	r := NewRegistry()
	err := r.ImportDir(dir, func(string) http.Handler { return noopController })
	require.NoError(t, err)

	var types []string
	r.Menu(func(e MenuEntry) bool {
		types = append(types, e.EntityType)
		return true
	})
	assert.ElementsMatch(t, []string{"products", "orders"}, types)
}

func TestImportDirRejectsSpecWithoutType(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"),
		[]byte("label: No Type\n"), 0o600))

	r := NewRegistry()
	err := r.ImportDir(dir, func(string) http.Handler { return noopController })
	assert.ErrorIs(t, err, config.ErrConfiguration)
}
