// Package typed adds address templating, schema adapters, and structured
// error mapping on top of the core service runtime (spec §4.5). Where the
// Python reference used class decorators and reflection over dataclass
// fields, this binds an Operation to its schema quadruple with Go generics
// and a small amount of reflection over struct tags.
package typed

import (
	"fmt"
	"reflect"
	"strings"

	micro "github.com/charbonats/nats-micro"
)

const (
	matchOne  = "*"
	matchAll  = ">"
	separator = "."
)

// ParamTag is the struct tag used to bind a parameter field to a
// placeholder name; defaults to the field's name when absent.
const ParamTag = "param"

// Address is a subject template with zero or more placeholders `{name}`
// matching exactly one token, and optionally one terminal `{name...}`
// matching every remaining token (spec §3).
type Address[P any] struct {
	template string
	subject  string
	mapping  map[string]int
	wildcard *wildcardParam
}

type wildcardParam struct {
	name string
	pos  int
}

// NewAddress parses template and validates that its placeholders exactly
// cover the exported fields of P, each named by its param tag or, when
// untagged, by its field name.
func NewAddress[P any](template string) (*Address[P], error) {
	mapping, wildcard, subject, err := parseTemplate(template)
	if err != nil {
		return nil, err
	}
	fields := paramFields[P]()
	for name := range mapping {
		if _, ok := fields[name]; !ok {
			return nil, fmt.Errorf("%w: address %q: unknown parameter %q", micro.ErrAddressMismatch, template, name)
		}
	}
	if wildcard != nil {
		if _, ok := fields[wildcard.name]; !ok {
			return nil, fmt.Errorf("%w: address %q: unknown parameter %q", micro.ErrAddressMismatch, template, wildcard.name)
		}
	}
	for name := range fields {
		_, inMapping := mapping[name]
		inWildcard := wildcard != nil && wildcard.name == name
		if !inMapping && !inWildcard {
			return nil, fmt.Errorf("%w: address %q: missing parameter %q", micro.ErrAddressMismatch, template, name)
		}
	}
	return &Address[P]{template: template, subject: subject, mapping: mapping, wildcard: wildcard}, nil
}

// String returns the NATS subject filter (with `*`/`>` wildcards) backing
// this address.
func (a *Address[P]) String() string {
	return a.subject
}

// GetParams extracts P's fields from a concrete subject matching this
// address.
func (a *Address[P]) GetParams(subject string) (P, error) {
	var out P
	tokens := strings.Split(subject, separator)
	v := reflect.ValueOf(&out).Elem()
	fieldByParam := fieldIndexByParam(reflect.TypeOf(out))
	for name, pos := range a.mapping {
		if pos >= len(tokens) {
			return out, fmt.Errorf("subject %q: missing token for parameter %q", subject, name)
		}
		idx, ok := fieldByParam[name]
		if !ok {
			continue
		}
		v.Field(idx).SetString(tokens[pos])
	}
	if a.wildcard != nil {
		if a.wildcard.pos > len(tokens) {
			return out, fmt.Errorf("subject %q: missing tokens for parameter %q", subject, a.wildcard.name)
		}
		idx, ok := fieldByParam[a.wildcard.name]
		if ok {
			rest := tokens[a.wildcard.pos:]
			v.Field(idx).Set(reflect.ValueOf(rest))
		}
	}
	return out, nil
}

// GetSubject renders a concrete publishable subject from params. When
// called with the zero value of P on an address that declares no
// parameters, it simply returns the address's literal subject.
func (a *Address[P]) GetSubject(params P) (string, error) {
	tokens := strings.Split(a.subject, separator)
	v := reflect.ValueOf(params)
	fieldByParam := fieldIndexByParam(reflect.TypeOf(params))
	for name, pos := range a.mapping {
		idx, ok := fieldByParam[name]
		if !ok {
			continue
		}
		tokens[pos] = v.Field(idx).String()
	}
	if a.wildcard != nil {
		idx, ok := fieldByParam[a.wildcard.name]
		if ok {
			values, ok := v.Field(idx).Interface().([]string)
			if !ok || len(values) == 0 {
				return "", fmt.Errorf("parameter %q: expected non-empty []string", a.wildcard.name)
			}
			tokens[a.wildcard.pos] = values[0]
			tokens = append(tokens[:a.wildcard.pos+1], append(values[1:], tokens[a.wildcard.pos+1:]...)...)
		}
	}
	return strings.Join(tokens, separator), nil
}

func paramFields[P any]() map[string]struct{} {
	out := map[string]struct{}{}
	for name := range fieldIndexByParam(reflect.TypeOf(*new(P))) {
		out[name] = struct{}{}
	}
	return out
}

func fieldIndexByParam(t reflect.Type) map[string]int {
	out := map[string]int{}
	if t == nil || t.Kind() != reflect.Struct {
		return out
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Tag.Get(ParamTag)
		if name == "" {
			name = f.Name
		}
		out[name] = i
	}
	return out
}

// parseTemplate turns `foo.{bar}.baz.{qux...}` into the NATS subject
// `foo.*.baz.>` plus the position of each named placeholder, ported from
// the reference implementation's Placeholders.from_subject.
func parseTemplate(template string) (mapping map[string]int, wildcard *wildcardParam, subject string, err error) {
	mapping = map[string]int{}
	seenWildcard := false

	tokens := strings.Split(template, separator)
	outTokens := make([]string, len(tokens))
	for pos, tok := range tokens {
		if !strings.HasPrefix(tok, "{") || !strings.HasSuffix(tok, "}") {
			if strings.Contains(tok, "{") || strings.Contains(tok, "}") {
				return nil, nil, "", fmt.Errorf("address %q: placeholder must occupy a whole token", template)
			}
			outTokens[pos] = tok
			continue
		}
		inner := tok[1 : len(tok)-1]
		isWildcard := strings.HasSuffix(inner, "...")
		name := strings.TrimSuffix(inner, "...")
		if name == "" {
			return nil, nil, "", fmt.Errorf("address %q: placeholder cannot be empty", template)
		}
		if strings.Contains(name, separator) {
			return nil, nil, "", fmt.Errorf("address %q: invalid placeholder name %q", template, name)
		}
		if isWildcard {
			if seenWildcard {
				return nil, nil, "", fmt.Errorf("address %q: only one wildcard placeholder is allowed", template)
			}
			if pos != len(tokens)-1 {
				return nil, nil, "", fmt.Errorf("address %q: wildcard placeholder must be the last token", template)
			}
			seenWildcard = true
			wildcard = &wildcardParam{name: name, pos: pos}
			outTokens[pos] = matchAll
		} else {
			mapping[name] = pos
			outTokens[pos] = matchOne
		}
	}
	return mapping, wildcard, strings.Join(outTokens, separator), nil
}
