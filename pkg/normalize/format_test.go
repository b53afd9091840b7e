package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatJSON(t *testing.T) {
	got, err := FormatJSON(`{"b":1,"a":[1,2]}`, "  ")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"b\": 1,\n  \"a\": [\n    1,\n    2\n  ]\n}", got, "keys keep their order")

	_, err = FormatJSON(`{"b":`, "  ")
	assert.Error(t, err)
}

func TestFormatGraphQL(t *testing.T) {
	got, err := FormatGraphQL(`query BookQuery($id: ID!) { book(id: $id) { id title } }`, "  ")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "query BookQuery"), "got %q", got)
	assert.Contains(t, got, "\n  book(")
	assert.Contains(t, got, "\n    title")
	assert.False(t, strings.HasSuffix(got, "\n"))

	_, err = FormatGraphQL(`query { a( }`, "  ")
	assert.Error(t, err)
}

func TestFormatXML(t *testing.T) {
	got, err := FormatXML(`<feed><entry>1</entry></feed>`, "  ")
	require.NoError(t, err)
	assert.Contains(t, got, "<feed>\n  <entry>1</entry>\n</feed>")

	_, err = FormatXML(`plain text`, "  ")
	assert.Error(t, err)
}
