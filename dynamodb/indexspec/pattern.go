// Package indexspec implements the declarative description of an index's
// key-generation rule (IndexSpec, spec component C2) and the engine that
// derives index key attributes from entity values on create and update
// (IndexEngine, spec component C3).
//
// Key generation is pattern-based, adapted from the teacher's
// dynamodb/index/val value-source DSL (Fmt/FromField/Const) and
// dynamodb/table/keyer.go's FmtKeyer: a pattern like "USER#{id}" is split
// into literal and field-reference parts once, then evaluated against a
// marshaled entity document on every call. A field reference that cannot be
// resolved on the document is substituted with the literal "undefined" —
// this is the cheap well-formedness signal §4.2 of the spec calls for,
// rather than a hard failure, so the engine can report exactly which
// attributes were missing.
package indexspec

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Pattern is a parsed key-value template. Use Fmt, FromField, or Const to
// build one.
type Pattern struct {
	raw   string
	parts []patternPart
}

type patternPart struct {
	literal bool
	value   string // literal text, or a dotted field path
}

// Fmt parses a pattern string with {field} placeholders, e.g. "USER#{id}"
// or "ORG#{orgId}#USER#{id}". A bare pattern with no placeholders ("PROFILE")
// is a constant.
func Fmt(pattern string) Pattern {
	return Pattern{raw: pattern, parts: parsePattern(pattern)}
}

// FromField is shorthand for Fmt("{field}"): copy a single attribute
// verbatim as the key value.
func FromField(path string) Pattern {
	return Pattern{raw: "{" + path + "}", parts: []patternPart{{literal: false, value: path}}}
}

// Const returns a fixed key value with no field dependency.
func Const(value string) Pattern {
	return Pattern{raw: value, parts: []patternPart{{literal: true, value: value}}}
}

func parsePattern(raw string) []patternPart {
	var parts []patternPart
	for {
		start := strings.IndexByte(raw, '{')
		if start < 0 {
			if raw != "" {
				parts = append(parts, patternPart{literal: true, value: raw})
			}
			break
		}
		if start > 0 {
			parts = append(parts, patternPart{literal: true, value: raw[:start]})
		}
		end := strings.IndexByte(raw[start:], '}')
		if end < 0 {
			// unterminated placeholder; treat the rest as a literal.
			parts = append(parts, patternPart{literal: true, value: raw[start:]})
			break
		}
		field := raw[start+1 : start+end]
		parts = append(parts, patternPart{literal: false, value: field})
		raw = raw[start+end+1:]
	}
	return parts
}

// Eval substitutes every field reference with its value from doc. Missing
// fields are substituted with the literal string "undefined" and their
// dotted paths are returned in missing, letting callers build a precise
// MissingAttributesDetail.
func (p Pattern) Eval(doc map[string]types.AttributeValue) (value string, missing []string) {
	var b strings.Builder
	for _, part := range p.parts {
		if part.literal {
			b.WriteString(part.value)
			continue
		}
		v, ok := lookupPath(doc, part.value)
		if !ok {
			missing = append(missing, part.value)
			b.WriteString("undefined")
			continue
		}
		b.WriteString(v)
	}
	return b.String(), missing
}

// lookupPath resolves a dotted attribute path ("meta.version") against a
// marshaled entity document, descending into nested M (map) attribute
// values the same way the teacher's keys.FieldRef.Extract does.
func lookupPath(doc map[string]types.AttributeValue, path string) (string, bool) {
	segments := strings.Split(path, ".")
	var cur types.AttributeValue = &types.AttributeValueMemberM{Value: doc}
	for _, seg := range segments {
		m, ok := cur.(*types.AttributeValueMemberM)
		if !ok {
			return "", false
		}
		next, ok := m.Value[seg]
		if !ok {
			return "", false
		}
		cur = next
	}
	return stringifyAttr(cur)
}

func stringifyAttr(av types.AttributeValue) (string, bool) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value, true
	case *types.AttributeValueMemberN:
		return v.Value, true
	case *types.AttributeValueMemberBOOL:
		if v.Value {
			return "true", true
		}
		return "false", true
	case *types.AttributeValueMemberB:
		return string(v.Value), true
	case *types.AttributeValueMemberNULL:
		return "", false
	default:
		return "", false
	}
}
