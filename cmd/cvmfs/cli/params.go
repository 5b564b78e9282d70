// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// FlagsFromParams creates a flag set bound to the tagged fields of
// params, which must be a pointer to a struct. A malformed params type
// is a programming error and panics.
func FlagsFromParams(name string, params any) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	if err := BindFlags(params, flagSet); err != nil {
		panic(fmt.Sprintf("cli.FlagsFromParams(%q): %v", name, err))
	}
	return flagSet
}

// BindFlags registers a flag for each field of params tagged
// flag:"name" or flag:"name,n". The desc tag is the help text and the
// default tag the default value, parsed for the field's type.
// Embedded structs are bound recursively, which is how commands share
// flag groups.
//
// Supported field types: string, bool, int, int64, [time.Duration].
func BindFlags(params any, flagSet *pflag.FlagSet) error {
	value := reflect.ValueOf(params)
	if value.Kind() != reflect.Pointer || value.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("params must be a pointer to a struct, got %T", params)
	}
	return bindStruct(value.Elem(), flagSet)
}

func bindStruct(structValue reflect.Value, flagSet *pflag.FlagSet) error {
	structType := structValue.Type()
	for i := range structType.NumField() {
		field := structType.Field(i)
		fieldValue := structValue.Field(i)

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			if err := bindStruct(fieldValue, flagSet); err != nil {
				return fmt.Errorf("embedded %s: %w", field.Name, err)
			}
			continue
		}

		tag, ok := field.Tag.Lookup("flag")
		if !ok || tag == "" {
			continue
		}
		spec := flagSpec{description: field.Tag.Get("desc"), fallback: field.Tag.Get("default")}
		spec.name, spec.shorthand, _ = strings.Cut(tag, ",")
		if err := spec.bind(flagSet, fieldValue.Addr().Interface()); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}
	return nil
}

// flagSpec is one parsed flag tag.
type flagSpec struct {
	name        string
	shorthand   string
	description string
	fallback    string // the default tag, unparsed
}

func (s flagSpec) bind(flagSet *pflag.FlagSet, target any) error {
	switch target := target.(type) {
	case *string:
		flagSet.StringVarP(target, s.name, s.shorthand, s.fallback, s.description)
		return nil
	case *bool:
		return bindParsed(s, target, strconv.ParseBool, flagSet.BoolVarP)
	case *int:
		return bindParsed(s, target, strconv.Atoi, flagSet.IntVarP)
	case *int64:
		parse := func(text string) (int64, error) { return strconv.ParseInt(text, 10, 64) }
		return bindParsed(s, target, parse, flagSet.Int64VarP)
	case *time.Duration:
		return bindParsed(s, target, time.ParseDuration, flagSet.DurationVarP)
	default:
		return fmt.Errorf("unsupported type %T for flag --%s", target, s.name)
	}
}

// bindParsed parses the default tag with parse and registers the flag
// with register.
func bindParsed[T any](s flagSpec, target *T, parse func(string) (T, error), register func(*T, string, string, T, string)) error {
	var fallback T
	if s.fallback != "" {
		parsed, err := parse(s.fallback)
		if err != nil {
			return fmt.Errorf("default for --%s: %w", s.name, err)
		}
		fallback = parsed
	}
	register(target, s.name, s.shorthand, fallback, s.description)
	return nil
}
