// Package settings decodes the flat string settings a service or module
// receives into a typed Go struct.
//
// Target structs declare their keys with `cty` tags, as the gocty package
// expects. Each setting string is converted to the field's cty type, so
// "true"/"false" decode into a bool and "15" into a number, while "yes" for
// a bool is an error. Fields whose key is absent keep the value they had
// before decoding, which is how callers provide defaults.
package settings

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// ErrUnknownSetting is returned for keys the target struct does not declare.
var ErrUnknownSetting = errors.New("unknown setting")

// InvalidSettingError reports a value that cannot be converted to the type
// of its field.
type InvalidSettingError struct {
	Key   string
	Value string
	Err   error
}

func (e *InvalidSettingError) Error() string {
	return fmt.Sprintf("setting '%s': invalid value %q: %v", e.Key, e.Value, e.Err)
}

func (e *InvalidSettingError) Unwrap() error { return e.Err }

// Decode copies settings into target, a pointer to a cty-tagged struct.
func Decode(settings map[string]string, target any) error {
	ty, err := gocty.ImpliedType(target)
	if err != nil {
		return fmt.Errorf("settings target %T: %w", target, err)
	}
	if !ty.IsObjectType() {
		return fmt.Errorf("settings target %T must be a struct, got %s", target, ty.FriendlyName())
	}

	current, err := gocty.ToCtyValue(target, ty)
	if err != nil {
		return fmt.Errorf("settings target %T: %w", target, err)
	}
	attrs := current.AsValueMap()
	if attrs == nil {
		attrs = make(map[string]cty.Value, len(settings))
	}

	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var unknown []string
	attrTypes := ty.AttributeTypes()
	for _, k := range keys {
		want, ok := attrTypes[k]
		if !ok {
			unknown = append(unknown, k)
			continue
		}
		v, err := convert.Convert(cty.StringVal(settings[k]), want)
		if err != nil {
			return &InvalidSettingError{Key: k, Value: settings[k], Err: err}
		}
		attrs[k] = v
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, strings.Join(unknown, ", "))
	}

	if err := gocty.FromCtyValue(cty.ObjectVal(attrs), target); err != nil {
		var pathErr cty.PathError
		if errors.As(err, &pathErr) && len(pathErr.Path) > 0 {
			if step, ok := pathErr.Path[0].(cty.GetAttrStep); ok {
				return &InvalidSettingError{Key: step.Name, Value: settings[step.Name], Err: err}
			}
		}
		return err
	}
	return nil
}
