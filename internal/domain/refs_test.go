package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCustomerRefReportsEveryMissingField(t *testing.T) {
	res := NewCustomerRef("  ", "", "")

	require.False(t, res.IsValid())
	assert.Equal(t, []Code{CodeCustomerIDRequired, CodeCustomerNameRequired}, res.Notifications().Codes())
	assert.Equal(t, "customer.id", res.Items()[0].Path)
	assert.Equal(t, "customer.name", res.Items()[1].Path)
}

func TestNewBranchRefTrims(t *testing.T) {
	res := NewBranchRef(" b-1 ", " Downtown ", "branch")

	require.True(t, res.IsValid())
	assert.Equal(t, BranchRef{ID: "b-1", Name: "Downtown"}, res.Value())
}

func TestNewProductRefSKU(t *testing.T) {
	blank := NewProductRef("p-1", "Beer", "   ", "")
	require.True(t, blank.IsValid())
	assert.False(t, blank.Value().HasSKU())

	withSKU := NewProductRef("p-1", "Beer", " SKU-9 ", "")
	require.True(t, withSKU.IsValid())
	assert.Equal(t, "SKU-9", withSKU.Value().SKU)
}

func TestNewProductRefCustomPath(t *testing.T) {
	res := NewProductRef("", "Beer", "", "items[2].product")

	require.False(t, res.IsValid())
	assert.Equal(t, CodeProductIDRequired, res.Items()[0].Code)
	assert.Equal(t, "items[2].product.id", res.Items()[0].Path)
}
