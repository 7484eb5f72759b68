package htmlforms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractHiddenValuesFindsHiddenCSRFField(t *testing.T) {
	html := `<html><body>
		<form action="/checkout" method="post">
			<input type="hidden" name="csrf_token" value="ZXC123">
			<input type="text" name="quantity" value="2">
		</form>
	</body></html>`

	fields := ExtractHiddenValues(html)
	require.Len(t, fields, 1)
	assert.Equal(t, "csrf_token", fields[0].Name)
	assert.Equal(t, "ZXC123", fields[0].Value)
	assert.Equal(t, "/checkout", fields[0].FormAction)
}

func TestExtractHiddenValuesIgnoresVisibleFields(t *testing.T) {
	html := `<form><input type="text" name="email" value="a@b.com"></form>`
	assert.Empty(t, ExtractHiddenValues(html))
}

func TestExtractHiddenValuesOnEmptyInputReturnsNil(t *testing.T) {
	assert.Nil(t, ExtractHiddenValues(""))
}
