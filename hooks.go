package svcinject

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LiteralProvider is a hook invoked when a labeled dependency of a literal kind
// (string, bool, integer or float) has neither an override nor a resolver.
// - label: the label of the member or parameter
// - targetType: the type expected for that dependency (e.g., reflect.TypeOf("") for string)
// Returns:
// - value: the literal value to use for injection
// - found: whether a value is available
// - err: any error occurred while sourcing the value (e.g., parsing, I/O)
type LiteralProvider func(label Label, targetType reflect.Type) (value any, found bool, err error)

func (r *Registry) resolveLiteral(label Label, target reflect.Type) (any, bool, error) {
	if r.literals == nil || label == NoLabel || !isLiteralKind(target.Kind()) {
		return nil, false, nil
	}
	v, found, err := r.literals(label, target)
	if err != nil {
		return nil, false, fmt.Errorf("literal provider error for '%s': %w", label, err)
	}
	return v, found, nil
}

func isLiteralKind(k reflect.Kind) bool {
	switch k {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// EnvLiteralProvider serves literals from the process environment, falling back to the
// given .env files. The label is the variable name. Missing files are skipped, and
// variables already set in the environment take precedence, as with godotenv.Load.
// Without files, ".env" is read.
func EnvLiteralProvider(files ...string) (LiteralProvider, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	values := make(map[string]string)
	for _, file := range files {
		read, err := godotenv.Read(file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read env file %s: %w", file, err)
		}
		for k, v := range read {
			if _, seen := values[k]; !seen {
				values[k] = v
			}
		}
	}

	return func(label Label, targetType reflect.Type) (any, bool, error) {
		raw, ok := os.LookupEnv(string(label))
		if !ok {
			raw, ok = values[string(label)]
		}
		if !ok {
			return nil, false, nil
		}
		v, err := parseLiteral(raw, targetType)
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	}, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// parseLiteral converts raw into a value of target's literal kind.
func parseLiteral(raw string, target reflect.Type) (any, error) {
	v := reflect.New(target).Elem()
	switch target.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if target == durationType {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return nil, err
			}
			v.SetInt(int64(d))
			break
		}
		n, err := strconv.ParseInt(raw, 10, target.Bits())
		if err != nil {
			return nil, err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, target.Bits())
		if err != nil {
			return nil, err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, target.Bits())
		if err != nil {
			return nil, err
		}
		v.SetFloat(f)
	default:
		return nil, fmt.Errorf("%w: literal of kind %v", ErrTypeNotSupported, target.Kind())
	}
	return v.Interface(), nil
}
