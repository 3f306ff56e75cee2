package core

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/Knetic/govaluate"
)

// rewriteExpression replaces every field reference in expr with a safe
// govaluate variable name and returns the variable -> JSONPath mapping.
// "item" and "$.from.id" both become variables; string literals, keywords
// and function names are left alone.
func rewriteExpression(expr string) (string, map[string]string) {
	var out strings.Builder
	out.Grow(len(expr))

	varMap := make(map[string]string)
	var quote byte

	for i := 0; i < len(expr); {
		ch := expr[i]

		if quote != 0 {
			out.WriteByte(ch)
			if ch == '\\' && i+1 < len(expr) {
				out.WriteByte(expr[i+1])
				i += 2
				continue
			}
			if ch == quote {
				quote = 0
			}
			i++
			continue
		}

		if ch == '"' || ch == '\'' {
			quote = ch
			out.WriteByte(ch)
			i++
			continue
		}

		if ch != '$' && !isIdentStart(ch) {
			out.WriteByte(ch)
			i++
			continue
		}

		if isIdentStart(ch) {
			ident, next := parseIdentifier(expr, i)
			if isFunctionName(ident) && nextNonSpaceIs(expr, next, '(') {
				out.WriteString(ident)
				i = next
				continue
			}
		}
		token, next := parseJSONPathToken(expr, i)
		if isKeyword(token) {
			out.WriteString(token)
			i = next
			continue
		}
		path := token
		if token[0] != '$' {
			path = "$." + token
		}
		name := safeVarName(path)
		varMap[name] = path
		out.WriteString(name)
		i = next
	}

	return out.String(), varMap
}

func parseIdentifier(expr string, start int) (string, int) {
	i := start
	for i < len(expr) && (isIdentStart(expr[i]) || isDigit(expr[i])) {
		i++
	}
	return expr[start:i], i
}

func nextNonSpaceIs(expr string, start int, want byte) bool {
	for i := start; i < len(expr); i++ {
		switch expr[i] {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return expr[i] == want
		}
	}
	return false
}

func parseJSONPathToken(expr string, start int) (string, int) {
	i := start
	brackets := 0
	var quote byte
	for i < len(expr) {
		ch := expr[i]
		if quote != 0 {
			if ch == '\\' && i+1 < len(expr) {
				i += 2
				continue
			}
			if ch == quote {
				quote = 0
			}
			i++
			continue
		}
		switch ch {
		case '\'', '"':
			quote = ch
			i++
			continue
		case '[':
			brackets++
		case ']':
			if brackets > 0 {
				brackets--
			}
		}
		if brackets == 0 && isTerminator(ch) {
			break
		}
		i++
	}
	return expr[start:i], i
}

func isTerminator(ch byte) bool {
	switch ch {
	case ' ', '\t', '\n', '\r', ',', ';', '(', ')':
		return true
	case '+', '-', '*', '/', '%':
		return true
	case '=', '!', '<', '>', '&', '|':
		return true
	default:
		return false
	}
}

func safeVarName(path string) string {
	var b strings.Builder
	b.Grow(len(path) + 2)
	b.WriteString("v_")
	for i := 0; i < len(path); i++ {
		ch := path[i]
		if isIdentStart(ch) || isDigit(ch) {
			b.WriteByte(ch)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isKeyword(token string) bool {
	switch token {
	case "true", "false", "null", "nil":
		return true
	default:
		return false
	}
}

func isFunctionName(token string) bool {
	_, ok := ruleFunctions()[token]
	return ok
}

func ruleFunctions() map[string]govaluate.ExpressionFunction {
	return map[string]govaluate.ExpressionFunction{
		"contains": containsFunc,
		"like":     likeFunc,
	}
}

// contains(haystack, needle) works on strings, slices and map keys.
func containsFunc(args ...interface{}) (interface{}, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("contains expects 2 args, got %d", len(args))
	}
	if args[0] == nil || args[1] == nil {
		return false, nil
	}
	switch hay := args[0].(type) {
	case string:
		needle, ok := args[1].(string)
		if !ok {
			return false, nil
		}
		return strings.Contains(hay, needle), nil
	case []interface{}:
		for _, item := range hay {
			if reflect.DeepEqual(item, args[1]) {
				return true, nil
			}
		}
		return false, nil
	case map[string]interface{}:
		key, ok := args[1].(string)
		if !ok {
			return false, nil
		}
		_, found := hay[key]
		return found, nil
	}
	return false, nil
}

// like(value, pattern) matches SQL LIKE patterns: % is any run, _ one char.
func likeFunc(args ...interface{}) (interface{}, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("like expects 2 args")
	}
	left, ok := args[0].(string)
	if !ok {
		return false, nil
	}
	pattern, ok := args[1].(string)
	if !ok {
		return false, nil
	}
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, "%", ".*")
	escaped = strings.ReplaceAll(escaped, "_", ".")
	return regexp.MatchString("^"+escaped+"$", left)
}
