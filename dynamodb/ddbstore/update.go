// Update expression application, covering the SET/REMOVE/ADD/DELETE clauses
// dynamodb/ddbsdk's update builder emits (plain assignment, if_not_exists,
// numeric +/-, list_append, and set ADD/DELETE). Grounded in the same idea
// as the teacher's (incomplete, generated-parser-dependent) updateexpr
// package: split into clauses by keyword, then evaluate each assignment
// against the current item.
package ddbstore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var updateKeywords = map[string]bool{"SET": true, "REMOVE": true, "ADD": true, "DELETE": true}

func applyUpdate(expr string, current map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(current))
	for k, v := range current {
		out[k] = v
	}
	env := evalEnv{doc: out, names: names, values: values}

	clauses := splitUpdateClauses(tokenize(expr))
	for _, c := range clauses {
		var err error
		switch c.keyword {
		case "SET":
			err = applySet(c.tokens, env, out)
		case "REMOVE":
			err = applyRemove(c.tokens, env, out)
		case "ADD":
			err = applyAdd(c.tokens, env, out)
		case "DELETE":
			err = applyDelete(c.tokens, env, out)
		}
		if err != nil {
			return nil, fmt.Errorf("%s clause: %w", c.keyword, err)
		}
	}
	return out, nil
}

type updateClause struct {
	keyword string
	tokens  []string
}

func splitUpdateClauses(tokens []string) []updateClause {
	var clauses []updateClause
	var cur *updateClause
	for _, t := range tokens {
		if updateKeywords[strings.ToUpper(t)] {
			clauses = append(clauses, updateClause{})
			cur = &clauses[len(clauses)-1]
			cur.keyword = strings.ToUpper(t)
			continue
		}
		if cur == nil {
			continue
		}
		cur.tokens = append(cur.tokens, t)
	}
	return clauses
}

// splitOnTopLevelComma splits an assignment list on commas, which is safe
// here since none of the supported SET/ADD/DELETE value expressions nest a
// function call containing a comma-separated path as their own argument.
func splitOnTopLevelComma(tokens []string) [][]string {
	var groups [][]string
	var cur []string
	depth := 0
	for _, t := range tokens {
		switch t {
		case "(":
			depth++
		case ")":
			depth--
		case ",":
			if depth == 0 {
				groups = append(groups, cur)
				cur = nil
				continue
			}
		}
		cur = append(cur, t)
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	return groups
}

func resolveAttrName(env evalEnv, tok string) string {
	if alias, ok := env.names[tok]; ok {
		return alias
	}
	return tok
}

func applySet(tokens []string, env evalEnv, out map[string]types.AttributeValue) error {
	for _, assignment := range splitOnTopLevelComma(tokens) {
		eq := indexOf(assignment, "=")
		if eq < 0 {
			return fmt.Errorf("missing '=' in assignment %q", strings.Join(assignment, " "))
		}
		path := resolveAttrName(env, assignment[0])
		value, err := evalSetValue(assignment[eq+1:], env, path)
		if err != nil {
			return err
		}
		out[path] = value
	}
	return nil
}

func indexOf(tokens []string, tok string) int {
	for i, t := range tokens {
		if t == tok {
			return i
		}
	}
	return -1
}

// evalSetValue handles: a placeholder, if_not_exists(path, val), path + val,
// path - val, and list_append(path, val).
func evalSetValue(rhs []string, env evalEnv, targetPath string) (types.AttributeValue, error) {
	if len(rhs) == 1 {
		v, ok := operand(env, rhs[0])
		if !ok {
			return nil, fmt.Errorf("value %q not found", rhs[0])
		}
		return v, nil
	}
	if len(rhs) == 3 && (rhs[1] == "+" || rhs[1] == "-") {
		left, lok := operand(env, rhs[0])
		right, rok := operand(env, rhs[2])
		if !lok || !rok {
			return nil, fmt.Errorf("numeric operands not found for %q", strings.Join(rhs, " "))
		}
		ln, lerr := attrNumber(left)
		rn, rerr := attrNumber(right)
		if lerr != nil || rerr != nil {
			return nil, fmt.Errorf("non-numeric operand in arithmetic SET")
		}
		result := ln
		if rhs[1] == "+" {
			result += rn
		} else {
			result -= rn
		}
		return &types.AttributeValueMemberN{Value: formatNumber(result)}, nil
	}
	if rhs[0] == "if_not_exists" && rhs[1] == "(" {
		args := extractCallArgs(rhs)
		if len(args) != 2 {
			return nil, fmt.Errorf("if_not_exists requires two arguments")
		}
		if existing, ok := env.doc[targetPath]; ok {
			return existing, nil
		}
		v, ok := operand(env, args[1])
		if !ok {
			return nil, fmt.Errorf("fallback value %q not found", args[1])
		}
		return v, nil
	}
	if rhs[0] == "list_append" && rhs[1] == "(" {
		args := extractCallArgs(rhs)
		if len(args) != 2 {
			return nil, fmt.Errorf("list_append requires two arguments")
		}
		left, _ := operand(env, args[0])
		right, _ := operand(env, args[1])
		ll, _ := left.(*types.AttributeValueMemberL)
		rl, _ := right.(*types.AttributeValueMemberL)
		var combined []types.AttributeValue
		if ll != nil {
			combined = append(combined, ll.Value...)
		}
		if rl != nil {
			combined = append(combined, rl.Value...)
		}
		return &types.AttributeValueMemberL{Value: combined}, nil
	}
	return nil, fmt.Errorf("unsupported SET value expression %q", strings.Join(rhs, " "))
}

func extractCallArgs(tokens []string) []string {
	var args []string
	for _, t := range tokens[2 : len(tokens)-1] {
		if t == "," {
			continue
		}
		args = append(args, t)
	}
	return args
}

func applyRemove(tokens []string, env evalEnv, out map[string]types.AttributeValue) error {
	for _, group := range splitOnTopLevelComma(tokens) {
		if len(group) != 1 {
			return fmt.Errorf("unsupported REMOVE target %q", strings.Join(group, " "))
		}
		delete(out, resolveAttrName(env, group[0]))
	}
	return nil
}

func applyAdd(tokens []string, env evalEnv, out map[string]types.AttributeValue) error {
	for _, group := range splitOnTopLevelComma(tokens) {
		if len(group) != 2 {
			return fmt.Errorf("ADD clause expects 'path value' pairs, got %q", strings.Join(group, " "))
		}
		path := resolveAttrName(env, group[0])
		delta, ok := operand(env, group[1])
		if !ok {
			return fmt.Errorf("ADD value %q not found", group[1])
		}
		switch d := delta.(type) {
		case *types.AttributeValueMemberN:
			existing, _ := attrNumber(out[path])
			dn, err := attrNumber(d)
			if err != nil {
				return err
			}
			out[path] = &types.AttributeValueMemberN{Value: formatNumber(existing + dn)}
		case *types.AttributeValueMemberSS:
			out[path] = &types.AttributeValueMemberSS{Value: unionStrings(stringSetOf(out[path]), d.Value)}
		case *types.AttributeValueMemberNS:
			out[path] = &types.AttributeValueMemberNS{Value: unionStrings(numberSetOf(out[path]), d.Value)}
		default:
			return fmt.Errorf("ADD only supports numbers and sets, got %T", delta)
		}
	}
	return nil
}

func applyDelete(tokens []string, env evalEnv, out map[string]types.AttributeValue) error {
	for _, group := range splitOnTopLevelComma(tokens) {
		if len(group) != 2 {
			return fmt.Errorf("DELETE clause expects 'path value' pairs, got %q", strings.Join(group, " "))
		}
		path := resolveAttrName(env, group[0])
		elems, ok := operand(env, group[1])
		if !ok {
			return fmt.Errorf("DELETE value %q not found", group[1])
		}
		switch e := elems.(type) {
		case *types.AttributeValueMemberSS:
			remaining := subtractStrings(stringSetOf(out[path]), e.Value)
			if len(remaining) == 0 {
				delete(out, path)
			} else {
				out[path] = &types.AttributeValueMemberSS{Value: remaining}
			}
		case *types.AttributeValueMemberNS:
			remaining := subtractStrings(numberSetOf(out[path]), e.Value)
			if len(remaining) == 0 {
				delete(out, path)
			} else {
				out[path] = &types.AttributeValueMemberNS{Value: remaining}
			}
		default:
			return fmt.Errorf("DELETE only supports sets, got %T", elems)
		}
	}
	return nil
}

func stringSetOf(v types.AttributeValue) []string {
	if ss, ok := v.(*types.AttributeValueMemberSS); ok {
		return ss.Value
	}
	return nil
}

func numberSetOf(v types.AttributeValue) []string {
	if ns, ok := v.(*types.AttributeValueMemberNS); ok {
		return ns.Value
	}
	return nil
}

func unionStrings(existing, add []string) []string {
	seen := make(map[string]bool, len(existing))
	out := append([]string{}, existing...)
	for _, e := range existing {
		seen[e] = true
	}
	for _, a := range add {
		if !seen[a] {
			out = append(out, a)
			seen[a] = true
		}
	}
	return out
}

func subtractStrings(existing, remove []string) []string {
	removeSet := make(map[string]bool, len(remove))
	for _, r := range remove {
		removeSet[r] = true
	}
	var out []string
	for _, e := range existing {
		if !removeSet[e] {
			out = append(out, e)
		}
	}
	return out
}

func attrNumber(v types.AttributeValue) (float64, error) {
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		if v == nil {
			return 0, nil
		}
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
	return strconv.ParseFloat(n.Value, 64)
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
