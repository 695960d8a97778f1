package templates

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// tokenRegex finds {{ ... }} placeholders. The content is checked against
// pathRegex before substitution.
var (
	tokenRegex = regexp.MustCompile(`\{\{([^{}]*)\}\}`)
	pathRegex  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)*$`)
)

// Substitute replaces {{dotted.path}} tokens with values from vars.
// Tokens that do not resolve are left exactly as written.
func Substitute(text string, vars map[string]any) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	return tokenRegex.ReplaceAllStringFunc(text, func(match string) string {
		path := strings.TrimSpace(match[2 : len(match)-2])
		if !pathRegex.MatchString(path) {
			return match
		}
		val, ok := lookupPath(vars, path)
		if !ok {
			return match
		}
		return format(val)
	})
}

// lookupPath walks nested maps by dot-separated keys.
func lookupPath(vars map[string]any, path string) (any, bool) {
	var current any = vars
	for part := range strings.SplitSeq(path, ".") {
		next, ok := child(current, part)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, current != nil
}

func child(v any, key string) (any, bool) {
	switch m := v.(type) {
	case map[string]any:
		val, ok := m[key]
		return val, ok
	case map[string]string:
		val, ok := m[key]
		return val, ok
	case map[any]any:
		val, ok := m[key]
		return val, ok
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		val := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !val.IsValid() {
			return nil, false
		}
		return val.Interface(), true
	case reflect.Struct:
		f := rv.FieldByName(key)
		if !f.IsValid() || !f.CanInterface() {
			return nil, false
		}
		return f.Interface(), true
	}
	return nil, false
}

func format(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

// ValidationResult reports template syntax problems and the variables used.
type ValidationResult struct {
	Valid     bool
	Errors    []string
	Variables []string
}

// Validate checks brace balance and token grammar. It needs no datastore.
func Validate(text string) ValidationResult {
	res := ValidationResult{Valid: true}
	seen := make(map[string]bool)

	rest := text
	offset := 0
	for {
		open := strings.Index(rest, "{{")
		closeIdx := strings.Index(rest, "}}")
		if open < 0 {
			if closeIdx >= 0 {
				res.addError("unmatched }} at offset %d", offset+closeIdx)
			}
			break
		}
		if closeIdx >= 0 && closeIdx < open {
			res.addError("unmatched }} at offset %d", offset+closeIdx)
		}

		end := strings.Index(rest[open+2:], "}}")
		if end < 0 {
			res.addError("unclosed {{ at offset %d", offset+open)
			break
		}
		inner := rest[open+2 : open+2+end]
		if strings.Contains(inner, "{{") {
			res.addError("nested {{ at offset %d", offset+open)
		} else {
			path := strings.TrimSpace(inner)
			switch {
			case path == "":
				res.addError("empty placeholder at offset %d", offset+open)
			case !pathRegex.MatchString(path):
				res.addError("invalid placeholder %q at offset %d", path, offset+open)
			case !seen[path]:
				seen[path] = true
				res.Variables = append(res.Variables, path)
			}
		}

		consumed := open + 2 + end + 2
		offset += consumed
		rest = rest[consumed:]
	}
	return res
}

func (r *ValidationResult) addError(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}
