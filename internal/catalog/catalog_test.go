package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTables() []Table {
	return []Table{
		{Name: "internacoes", Columns: []Column{{Name: "N_AIH", Type: "bigint"}}},
		{Name: "mortes", Columns: []Column{{Name: "N_AIH", Type: "bigint"}}},
	}
}

func TestNewPreservesOrderAndDedups(t *testing.T) {
	c := New(append(sampleTables(), Table{Name: "internacoes", Description: "duplicata"}))

	require.Equal(t, 2, c.Len())
	assert.Equal(t, "internacoes", c.Tables()[0].Name)
	assert.Equal(t, "mortes", c.Tables()[1].Name)

	// First occurrence wins.
	got, ok := c.Lookup("internacoes")
	require.True(t, ok)
	assert.Empty(t, got.Description)
}

func TestResolve(t *testing.T) {
	c := New(sampleTables())

	resolved, err := c.Resolve([]string{"mortes", "internacoes"})
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, "mortes", resolved["mortes"].Name)

	_, err = c.Resolve([]string{"mortes", "inexistente"})
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestHolderSwap(t *testing.T) {
	first := New(sampleTables())
	h := NewHolder(first)
	assert.Same(t, first, h.Current())

	snapshot := h.Current()

	second := New(sampleTables()[:1])
	h.Swap(second)
	assert.Same(t, second, h.Current())
	// A snapshot handed out before the swap is untouched.
	assert.Equal(t, 2, snapshot.Len())
}

func TestLoadDescriptionsMissingFile(t *testing.T) {
	docs, err := LoadDescriptions(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Nil(t, docs)
}

func TestLoadAndApplyDescriptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	content := `
tables:
  internacoes:
    title: Internações hospitalares
    description: Registros de internações do SIH-RS.
    notes:
      - Uma linha por AIH.
    value_mappings:
      SEXO: "1=Masculino, 3=Feminino"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	docs, err := LoadDescriptions(path)
	require.NoError(t, err)
	require.Contains(t, docs, "internacoes")

	tables := ApplyDescriptions(sampleTables(), docs)
	assert.Contains(t, tables[0].Description, "Internações hospitalares")
	assert.Contains(t, tables[0].Description, "SEXO: 1=Masculino, 3=Feminino")
	// Tables without a doc keep their original description.
	assert.Empty(t, tables[1].Description)
}

func TestTableDocRenderDeterministic(t *testing.T) {
	doc := TableDoc{
		Title:       "Internações",
		Description: "Registros do SIH-RS.",
		ValueMappings: map[string]string{
			"SEXO":     "1=Masculino, 3=Feminino",
			"COBRANCA": "12=óbito",
			"IDENT":    "1=normal",
		},
	}

	first := doc.Render()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, doc.Render())
	}
	assert.Less(t, strings.Index(first, "COBRANCA"), strings.Index(first, "SEXO"))
}
