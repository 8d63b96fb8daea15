package domain

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed aliases.yaml
var defaultAliasYAML []byte

// AliasTable maps normalized alias spellings to canonical metric keys.
type AliasTable map[string]string

type aliasFile struct {
	Aliases map[string][]string `yaml:"aliases"`
}

// LoadAliasTable reads an alias table from path, or the embedded defaults
// when path is empty.
func LoadAliasTable(path string) (AliasTable, error) {
	raw := defaultAliasYAML
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read alias file: %w", err)
		}
		raw = data
	}
	return parseAliasTable(raw)
}

func parseAliasTable(raw []byte) (AliasTable, error) {
	var file aliasFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse alias file: %w", err)
	}

	table := make(AliasTable)
	for metricKey, spellings := range file.Aliases {
		for _, spelling := range spellings {
			table[NormalizeName(spelling)] = metricKey
		}
	}
	return table, nil
}

// Lookup resolves a raw name through the alias table.
func (t AliasTable) Lookup(rawName string) (string, bool) {
	key, ok := t[NormalizeName(rawName)]
	return key, ok
}

// NormalizeName folds case, strips punctuation, and collapses whitespace so
// that "Body  Weight", "body weight", and "Weight:" compare equal.
func NormalizeName(name string) string {
	folded := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, name)
	return strings.Join(strings.Fields(folded), " ")
}
