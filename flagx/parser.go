// Package flagx binds cobra flags to tagged option structs
//
//	type ServeOptions struct {
//	    ConfigPath string        `flag:"config,c" default:"./configs" usage:"config directory"`
//	    Timeout    time.Duration `flag:"shutdown-timeout" default:"30s"`
//	}
//
//	var opts ServeOptions
//	_ = flagx.BindFlags(cmd, &opts)      // while building the command
//	_ = flagx.ParseFlags(cmd, &opts)     // inside RunE
package flagx

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var durationType = reflect.TypeOf(time.Duration(0))

// flagField one tagged struct field
type flagField struct {
	name     string
	short    string
	usage    string
	def      string
	required bool
	value    reflect.Value
	typ      reflect.Type
}

// fields tagged fields of target, which must be a pointer to struct
func fields(target interface{}) ([]flagField, error) {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("target must be a pointer to struct")
	}
	v = v.Elem()
	t := v.Type()

	var out []flagField
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("flag")
		if tag == "" || !v.Field(i).CanSet() {
			continue
		}
		name, short, _ := strings.Cut(tag, ",")
		out = append(out, flagField{
			name:     name,
			short:    short,
			usage:    sf.Tag.Get("usage"),
			def:      sf.Tag.Get("default"),
			required: sf.Tag.Get("required") == "true",
			value:    v.Field(i),
			typ:      sf.Type,
		})
	}
	return out, nil
}

// BindFlags registers one flag per tagged field of target
func BindFlags(cmd *cobra.Command, target interface{}) error {
	ff, err := fields(target)
	if err != nil {
		return err
	}
	for _, f := range ff {
		if err := register(cmd.Flags(), f); err != nil {
			return fmt.Errorf("bind flag %s: %w", f.name, err)
		}
		if f.required {
			if err := cmd.MarkFlagRequired(f.name); err != nil {
				return err
			}
		}
	}
	return nil
}

func register(fs *pflag.FlagSet, f flagField) error {
	if f.typ == durationType {
		def, err := parseDefault(f.def, time.ParseDuration)
		if err != nil {
			return err
		}
		fs.DurationP(f.name, f.short, def, f.usage)
		return nil
	}

	switch f.typ.Kind() {
	case reflect.String:
		fs.StringP(f.name, f.short, f.def, f.usage)
	case reflect.Int:
		def, err := parseDefault(f.def, strconv.Atoi)
		if err != nil {
			return err
		}
		fs.IntP(f.name, f.short, def, f.usage)
	case reflect.Int64:
		def, err := parseDefault(f.def, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
		if err != nil {
			return err
		}
		fs.Int64P(f.name, f.short, def, f.usage)
	case reflect.Bool:
		def, err := parseDefault(f.def, strconv.ParseBool)
		if err != nil {
			return err
		}
		fs.BoolP(f.name, f.short, def, f.usage)
	case reflect.Slice:
		if f.typ.Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type: %s", f.typ.Elem().Kind())
		}
		var def []string
		if f.def != "" {
			def = strings.Split(f.def, ",")
		}
		fs.StringSliceP(f.name, f.short, def, f.usage)
	default:
		return fmt.Errorf("unsupported field type: %s", f.typ.Kind())
	}
	return nil
}

func parseDefault[T any](raw string, parse func(string) (T, error)) (T, error) {
	var zero T
	if raw == "" {
		return zero, nil
	}
	v, err := parse(raw)
	if err != nil {
		return zero, fmt.Errorf("invalid default %q: %w", raw, err)
	}
	return v, nil
}

// ParseFlags copies the parsed flag values into the tagged fields of target
func ParseFlags(cmd *cobra.Command, target interface{}) error {
	ff, err := fields(target)
	if err != nil {
		return err
	}
	fs := cmd.Flags()
	for _, f := range ff {
		if err := assign(fs, f); err != nil {
			return fmt.Errorf("parse flag %s: %w", f.name, err)
		}
	}
	return nil
}

func assign(fs *pflag.FlagSet, f flagField) error {
	if f.typ == durationType {
		d, err := fs.GetDuration(f.name)
		if err != nil {
			return err
		}
		f.value.SetInt(int64(d))
		return nil
	}

	switch f.typ.Kind() {
	case reflect.String:
		s, err := fs.GetString(f.name)
		if err != nil {
			return err
		}
		f.value.SetString(s)
	case reflect.Int:
		n, err := fs.GetInt(f.name)
		if err != nil {
			return err
		}
		f.value.SetInt(int64(n))
	case reflect.Int64:
		n, err := fs.GetInt64(f.name)
		if err != nil {
			return err
		}
		f.value.SetInt(n)
	case reflect.Bool:
		b, err := fs.GetBool(f.name)
		if err != nil {
			return err
		}
		f.value.SetBool(b)
	case reflect.Slice:
		ss, err := fs.GetStringSlice(f.name)
		if err != nil {
			return err
		}
		f.value.Set(reflect.ValueOf(ss))
	default:
		return fmt.Errorf("unsupported field type: %s", f.typ.Kind())
	}
	return nil
}
