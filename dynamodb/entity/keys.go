package entity

import (
	"fmt"

	"github.com/acksell/entitykit/dynamodb/indexspec"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// setPrimaryKeyAttrs derives the primary index's key from doc using spec and
// writes the resolved pk/sk attributes back into doc. Unlike a secondary
// index, the primary key is mandatory and never differentially maintained:
// if it cannot be derived, the value simply doesn't have what the table
// needs to address it.
func setPrimaryKeyAttrs(spec indexspec.IndexSpec, doc map[string]types.AttributeValue) error {
	tuple, missing, err := spec.GenerateKey(doc)
	if err != nil {
		return fmt.Errorf("entitykit: derive primary key: %w", err)
	}
	if len(missing) > 0 {
		return fmt.Errorf("entitykit: primary key missing attributes: %v", missing)
	}
	doc[spec.PKAttr] = &types.AttributeValueMemberS{Value: tuple.PK}
	if spec.SKAttr != "" {
		doc[spec.SKAttr] = &types.AttributeValueMemberS{Value: tuple.SK}
	}
	return nil
}

// withoutAttrs returns a shallow copy of doc with the named attributes
// removed, used to keep primary-key attributes out of the rawEntity handed
// to ddbsdk.Put (see rawEntity's doc comment).
func withoutAttrs(doc map[string]types.AttributeValue, names ...string) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	for _, n := range names {
		delete(out, n)
	}
	return out
}

func mergeDocs(docs ...map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue)
	for _, d := range docs {
		for k, v := range d {
			out[k] = v
		}
	}
	return out
}
