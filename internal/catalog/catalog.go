// Package catalog holds the allow-list of browsable tables and the
// configuration of how their foreign keys are displayed.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"libcat/internal/dblib"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type ReferenceDef struct {
	Table   string `yaml:"table"`
	Key     string `yaml:"key"`
	Display string `yaml:"display"`
}

type TableDef struct {
	Name  string `yaml:"name"`
	Title string `yaml:"title"`
	// Display is the column other tables show instead of this table's key.
	Display    string                  `yaml:"display"`
	References map[string]ReferenceDef `yaml:"references"`
}

type Catalog struct {
	Tables []TableDef `yaml:"tables"`

	byName map[string]int
}

// Default returns the built-in library catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// LoadFile reads a catalog definition from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read catalog file: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a catalog definition.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("could not parse catalog: %w", err)
	}
	if len(c.Tables) == 0 {
		return nil, fmt.Errorf("catalog defines no tables")
	}

	c.byName = make(map[string]int, len(c.Tables))
	for i, t := range c.Tables {
		if !dblib.ValidIdent(t.Name) {
			return nil, fmt.Errorf("invalid table name %q", t.Name)
		}
		if _, dup := c.byName[t.Name]; dup {
			return nil, fmt.Errorf("table %q defined twice", t.Name)
		}
		if t.Display != "" && !dblib.ValidIdent(t.Display) {
			return nil, fmt.Errorf("table %s: invalid display column %q", t.Name, t.Display)
		}
		if c.Tables[i].Title == "" {
			c.Tables[i].Title = t.Name
		}
		c.byName[t.Name] = i
	}
	for _, t := range c.Tables {
		for col, ref := range t.References {
			if !dblib.ValidIdent(col) || !dblib.ValidIdent(ref.Key) || !dblib.ValidIdent(ref.Display) {
				return nil, fmt.Errorf("table %s: invalid reference on %q", t.Name, col)
			}
			if _, ok := c.byName[ref.Table]; !ok {
				return nil, fmt.Errorf("table %s: column %s references unknown table %q", t.Name, col, ref.Table)
			}
		}
	}
	return &c, nil
}

// Names returns the browsable tables in menu order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Tables))
	for i, t := range c.Tables {
		names[i] = t.Name
	}
	return names
}

// Table looks a table up in the allow-list.
func (c *Catalog) Table(name string) (TableDef, bool) {
	i, ok := c.byName[name]
	if !ok {
		return TableDef{}, false
	}
	return c.Tables[i], true
}

func (c *Catalog) Title(name string) string {
	if t, ok := c.Table(name); ok {
		return t.Title
	}
	return name
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Resolve builds the descriptor of an allow-listed table from live metadata.
// Configured references come first; foreign keys found in the database
// fill in the remaining columns when the referenced table has a display
// column configured.
func (c *Catalog) Resolve(ctx context.Context, exec dblib.Executor, name string) (*dblib.Table, error) {
	def, ok := c.Table(name)
	if !ok {
		return nil, &dblib.SchemaIntrospectionError{Table: name, Reason: "not a browsable table"}
	}
	columns := exec.Columns(ctx, name)
	if len(columns) == 0 {
		return nil, &dblib.SchemaIntrospectionError{Table: name, Reason: "no columns found"}
	}

	table := &dblib.Table{
		Name:       name,
		Columns:    columns,
		References: map[string]dblib.Reference{},
	}

	refColumns := map[string][]string{}
	columnsOf := func(t string) []string {
		if cols, ok := refColumns[t]; ok {
			return cols
		}
		cols := exec.Columns(ctx, t)
		refColumns[t] = cols
		return cols
	}

	for col, rd := range def.References {
		if !contains(columns, col) {
			return nil, &dblib.SchemaIntrospectionError{Table: name, Reason: fmt.Sprintf("reference column %s not found", col)}
		}
		target := columnsOf(rd.Table)
		if !contains(target, rd.Key) || !contains(target, rd.Display) {
			return nil, &dblib.SchemaIntrospectionError{
				Table:  name,
				Reason: fmt.Sprintf("reference %s -> %s(%s, %s) does not match the database", col, rd.Table, rd.Key, rd.Display),
			}
		}
		table.References[col] = dblib.Reference{Table: rd.Table, KeyColumn: rd.Key, DisplayColumn: rd.Display}
	}

	keys, err := exec.ForeignKeys(ctx, name)
	if err != nil {
		return table, nil
	}
	for _, fk := range keys {
		if _, configured := table.References[fk.Column]; configured || !contains(columns, fk.Column) {
			continue
		}
		targetDef, ok := c.Table(fk.RefTable)
		if !ok || targetDef.Display == "" {
			continue
		}
		target := columnsOf(fk.RefTable)
		if len(target) == 0 || !contains(target, targetDef.Display) {
			continue
		}
		key := fk.RefColumn
		if key == "" {
			key = target[0]
		}
		if !contains(target, key) {
			continue
		}
		table.References[fk.Column] = dblib.Reference{Table: fk.RefTable, KeyColumn: key, DisplayColumn: targetDef.Display}
	}
	return table, nil
}
