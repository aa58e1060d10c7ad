package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// TableDoc is the curated documentation for one table: free-text
// description, analyst notes, and value mappings for coded columns.
// These feed both table selection scoring and SQL generation prompts.
type TableDoc struct {
	Title         string            `yaml:"title"`
	Description   string            `yaml:"description"`
	Notes         []string          `yaml:"notes"`
	ValueMappings map[string]string `yaml:"value_mappings"`
}

type descriptionsFile struct {
	Tables map[string]TableDoc `yaml:"tables"`
}

// LoadDescriptions reads the curated table documentation file. A missing
// file is not an error; the catalog then carries bare metadata only.
func LoadDescriptions(path string) (map[string]TableDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read descriptions: %w", err)
	}

	var file descriptionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse descriptions: %w", err)
	}
	return file.Tables, nil
}

// Render flattens a TableDoc into the single description string stored
// on the catalog table.
func (d TableDoc) Render() string {
	var b strings.Builder
	if d.Title != "" {
		b.WriteString(d.Title)
	}
	if d.Description != "" {
		if b.Len() > 0 {
			b.WriteString(". ")
		}
		b.WriteString(d.Description)
	}
	for _, note := range d.Notes {
		b.WriteString(" | ")
		b.WriteString(note)
	}
	sortedMappings(d.ValueMappings)(func(col, mapping string) bool {
		b.WriteString(" | ")
		b.WriteString(col)
		b.WriteString(": ")
		b.WriteString(mapping)
		return true
	})
	return b.String()
}

// sortedMappings yields mappings in key order for deterministic output.
func sortedMappings(m map[string]string) func(func(string, string) bool) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return func(yield func(string, string) bool) {
		for _, k := range keys {
			if !yield(k, m[k]) {
				return
			}
		}
	}
}

// ApplyDescriptions returns a copy of tables with descriptions merged in.
// Tables without curated docs keep an empty description.
func ApplyDescriptions(tables []Table, docs map[string]TableDoc) []Table {
	out := make([]Table, len(tables))
	copy(out, tables)
	for i := range out {
		if doc, ok := docs[out[i].Name]; ok {
			out[i].Description = doc.Render()
		}
	}
	return out
}
