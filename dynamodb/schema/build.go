package schema

import (
	"fmt"

	"github.com/acksell/entitykit/dynamodb/indexspec"
	"github.com/acksell/entitykit/dynamodb/table"
)

// BuildTable converts a declaratively loaded Table into the
// table.TableDefinition a StoreClient-backed repository addresses.
func (t Table) BuildTable() table.TableDefinition {
	def := table.TableDefinition{
		Name: t.Name,
		KeyDefinitions: table.PrimaryKeyDefinition{
			PartitionKey: keyDefFrom(t.PartitionKey),
		},
	}
	if t.SortKey != nil {
		def.KeyDefinitions.SortKey = keyDefFrom(*t.SortKey)
	}
	for _, g := range t.GSIs {
		gsi := table.GSIDefinition{
			Name: g.Name,
			KeyDefinitions: table.PrimaryKeyDefinition{
				PartitionKey: keyDefFrom(g.PartitionKey),
			},
		}
		if g.SortKey != nil {
			gsi.KeyDefinitions.SortKey = keyDefFrom(*g.SortKey)
		}
		def.GSIs = append(def.GSIs, gsi)
	}
	return def
}

func keyDefFrom(k KeyDef) table.KeyDef {
	return table.KeyDef{Name: k.Name, Kind: table.KeyKind(k.Kind)}
}

// BuildEngine converts an Entity's partition/sort key patterns and GSI
// mappings into an indexspec.Engine, resolving each GSIMapping's "gsi" name
// against the owning Table's declared GSIs to find the attribute names the
// derived key goes into.
func (e Entity) BuildEngine(owner Table) (*indexspec.Engine, error) {
	primary := indexspec.IndexSpec{
		Name:   "primary",
		PKAttr: owner.PartitionKey.Name,
	}
	if owner.SortKey != nil {
		primary.SKAttr = owner.SortKey.Name
	}

	var secondaries []indexspec.IndexSpec
	for _, m := range e.GSIMappings {
		gsi, ok := findGSI(owner, m.GSI)
		if !ok {
			return nil, fmt.Errorf("entity %q maps to undeclared gsi %q", e.Type, m.GSI)
		}
		skAttr := ""
		skPattern := indexspec.Pattern{}
		if gsi.SortKey != nil && m.SortPattern != "" {
			skAttr = gsi.SortKey.Name
			skPattern = indexspec.Fmt(m.SortPattern)
		}
		secondaries = append(secondaries, indexspec.FromPatterns(
			m.GSI,
			gsi.PartitionKey.Name, indexspec.Fmt(m.PartitionPattern),
			skAttr, skPattern,
		))
	}
	return indexspec.NewEngine(primary, secondaries...), nil
}

func findGSI(t Table, name string) (GSI, bool) {
	for _, g := range t.GSIs {
		if g.Name == name {
			return g, true
		}
	}
	return GSI{}, false
}
