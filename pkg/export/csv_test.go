package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRenderEmitsBOMAndParseStripsIt(t *testing.T) {
	data := Dataset{
		Headers: []string{"Título", "Autor"},
		Rows:    []map[string]string{{"Título": "Kika Superbruja", "Autor": "Knister"}},
	}

	payload, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(payload, []byte(utf8BOM)))

	parsed, err := NewCSVImporter().Parse(bytes.NewReader(payload))
	require.NoError(t, err)
	require.Len(t, parsed.Headers, 2)
	assert.Equal(t, "Título", parsed.Headers[0])
	assert.Equal(t, "Kika Superbruja", Field(parsed.Rows[0], "título"))
}

func TestCSVParseAcceptsFileWithoutBOM(t *testing.T) {
	parsed, err := NewCSVImporter().Parse(strings.NewReader("Nombre,Curso\nAna,3ºA\n"))
	require.NoError(t, err)
	assert.Equal(t, "Nombre", parsed.Headers[0])
	assert.Equal(t, "Ana", Field(parsed.Rows[0], "nombre"))
}
