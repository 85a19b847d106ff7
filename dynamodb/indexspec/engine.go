package indexspec

import (
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/acksell/entitykit/dynamodb/entityerr"
)

// Engine is the IndexEngine (spec component C3): given an entity's declared
// indexes, it derives and attaches the key attributes for every secondary
// index at create time, and differentially recomputes only the indexes a
// patch actually affects at update time. It never touches the primary
// index, which is addressed directly by the table's own key definition.
type Engine struct {
	primary     IndexSpec
	secondaries []IndexSpec
	byName      map[string]IndexSpec
}

// NewEngine builds an Engine from the primary index and zero or more
// secondary (GSI) indexes. Secondary names must be unique.
func NewEngine(primary IndexSpec, secondaries ...IndexSpec) *Engine {
	byName := make(map[string]IndexSpec, len(secondaries))
	ordered := make([]IndexSpec, 0, len(secondaries))
	for _, s := range secondaries {
		byName[s.Name] = s
		ordered = append(ordered, s)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })
	return &Engine{primary: primary, secondaries: ordered, byName: byName}
}

// Names returns the declared secondary index names, sorted.
func (e *Engine) Names() []string {
	names := make([]string, len(e.secondaries))
	for i, s := range e.secondaries {
		names[i] = s.Name
	}
	return names
}

// CreateOptions controls BuildForCreate.
type CreateOptions struct {
	// ExcludeIndexes skips key generation for the named indexes entirely,
	// leaving the item without those GSI attributes (sparse index idiom:
	// items absent a GSI's key attributes simply don't appear in it).
	ExcludeIndexes map[string]bool
}

// BuildForCreate derives every secondary index's key attributes from doc
// and returns them as an attribute patch to merge onto the item being
// written. A secondary whose key cannot be fully resolved from doc is an
// error (ErrMissingAttributes) unless it has been excluded, since a newly
// created item has no prior version to fall back on.
func (e *Engine) BuildForCreate(doc map[string]types.AttributeValue, opts CreateOptions) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue)
	for _, spec := range e.secondaries {
		if opts.ExcludeIndexes[spec.Name] {
			continue
		}
		tuple, missing, err := spec.GenerateKey(doc)
		if err != nil {
			return nil, entityerr.Wrap(entityerr.ErrMissingAttributes, "index "+spec.Name, entityerr.MissingAttributesDetail{Index: spec.Name}, err)
		}
		if len(missing) > 0 || !wellFormed(tuple.PK) || (tuple.HasSK() && !wellFormed(tuple.SK)) {
			return nil, entityerr.New(entityerr.ErrMissingAttributes, "index "+spec.Name, entityerr.MissingAttributesDetail{Index: spec.Name, Missing: missing})
		}
		out[spec.PKAttr] = &types.AttributeValueMemberS{Value: tuple.PK}
		if spec.SKAttr != "" {
			out[spec.SKAttr] = &types.AttributeValueMemberS{Value: tuple.SK}
		}
	}
	return out, nil
}

// UpdateOptions controls BuildForUpdate.
type UpdateOptions struct {
	// ForceRebuild names read-only indexes that should be recomputed
	// anyway, overriding their ReadOnly flag. Names that don't match a
	// declared secondary index are an error (ErrUnknownIndex).
	ForceRebuild map[string]bool
}

// BuildForUpdate implements the differential index-maintenance algorithm:
//
//  1. merged = current with patch's attributes overlaid on top.
//  2. For each declared secondary, unless ReadOnly (and not in
//     ForceRebuild): derive the key from current and from merged.
//  3. If the two derivations produce an identical KeyTuple, the index is
//     unaffected by this patch — skip it, sparing a write the store would
//     reject as a no-op anyway on some index types.
//  4. If merged cannot produce a well-formed key (missing attributes after
//     the patch), that is ErrInsufficientDataForIndex: the patch has put
//     the item into a state this index cannot represent.
//  5. Otherwise the index moved; its new key attributes go into the
//     returned patch.
//
// The primary index is never included in the result; callers apply it
// separately since it is immutable once an item is created.
func (e *Engine) BuildForUpdate(current, patch map[string]types.AttributeValue, opts UpdateOptions) (map[string]types.AttributeValue, error) {
	if err := e.validateForceRebuild(opts.ForceRebuild); err != nil {
		return nil, err
	}
	merged := mergeAttributes(current, patch)

	out := make(map[string]types.AttributeValue)
	for _, spec := range e.secondaries {
		if spec.ReadOnly && !opts.ForceRebuild[spec.Name] {
			continue
		}

		beforeTuple, _, err := spec.GenerateKey(current)
		if err != nil {
			return nil, entityerr.Wrap(entityerr.ErrInsufficientDataForIndex, "index "+spec.Name, entityerr.MissingAttributesDetail{Index: spec.Name}, err)
		}
		afterTuple, afterMissing, err := spec.GenerateKey(merged)
		if err != nil {
			return nil, entityerr.Wrap(entityerr.ErrInsufficientDataForIndex, "index "+spec.Name, entityerr.MissingAttributesDetail{Index: spec.Name}, err)
		}

		if afterTuple == beforeTuple {
			continue
		}

		if len(afterMissing) > 0 || !wellFormed(afterTuple.PK) || (afterTuple.HasSK() && !wellFormed(afterTuple.SK)) {
			return nil, entityerr.New(entityerr.ErrInsufficientDataForIndex, "index "+spec.Name, entityerr.MissingAttributesDetail{Index: spec.Name, Missing: afterMissing})
		}

		out[spec.PKAttr] = &types.AttributeValueMemberS{Value: afterTuple.PK}
		if spec.SKAttr != "" {
			out[spec.SKAttr] = &types.AttributeValueMemberS{Value: afterTuple.SK}
		}
	}
	return out, nil
}

func (e *Engine) validateForceRebuild(names map[string]bool) error {
	if len(names) == 0 {
		return nil
	}
	var unknown []string
	for name := range names {
		if _, ok := e.byName[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return entityerr.New(entityerr.ErrUnknownIndex, "forceIndexRebuild", entityerr.UnknownIndexDetail{Requested: unknown, Known: e.Names()})
	}
	return nil
}

func mergeAttributes(current, patch map[string]types.AttributeValue) map[string]types.AttributeValue {
	merged := make(map[string]types.AttributeValue, len(current)+len(patch))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}
