package ddbstore

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// project returns the subset of item named by a ProjectionExpression
// ("#0, #1, meta.version" style comma list of top-level attribute paths).
// Nested paths are projected whole (the attribute at the path's head is
// kept in full); this matches what the spec's includeIndexes/select
// surface actually needs, which is top-level attribute selection.
func project(expr string, names map[string]string, item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue)
	for _, raw := range strings.Split(expr, ",") {
		tok := strings.TrimSpace(raw)
		if tok == "" {
			continue
		}
		head := strings.SplitN(tok, ".", 2)[0]
		name := head
		if alias, ok := names[head]; ok {
			name = alias
		}
		if v, ok := item[name]; ok {
			out[name] = v
		}
	}
	return out
}
