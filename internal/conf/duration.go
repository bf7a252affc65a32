package conf

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads naturally in config files. Values
// are Go duration strings ("30s", "5m"); a bare integer is accepted as
// seconds, the same unit the gateway uses for its capture duration
// override.
type Duration time.Duration

// Std converts Duration to a standard time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalYAML outputs the duration as a string like "30s".
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML accepts a duration string ("30s", "5m") or a bare integer
// number of seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("expected scalar duration value, got %v", value.Kind)
	}
	parsed, err := parseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func parseDuration(s string) (Duration, error) {
	if parsed, err := time.ParseDuration(s); err == nil {
		return Duration(parsed), nil
	}
	if seconds, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Duration(time.Duration(seconds) * time.Second), nil
	}
	return 0, fmt.Errorf("invalid duration %q: expected format like \"30s\" or a number of seconds", s)
}

var durationType = reflect.TypeFor[Duration]()

// DurationDecodeHook returns a mapstructure DecodeHookFunc that converts
// config values to conf.Duration: strings via time.ParseDuration, numbers
// as seconds. Viper's built-in StringToTimeDurationHookFunc only covers
// time.Duration fields, so the custom type needs its own hook.
//
// StringToSliceHookFunc stays composed in so list settings sourced from
// environment variables (e.g. CENTINELA_CAPTURE_SENSORTYPES="motion,door")
// keep decoding.
func DurationDecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.DecodeHookFuncType(func(from, to reflect.Type, data any) (any, error) {
			if to != durationType {
				return data, nil
			}

			switch v := data.(type) {
			case string:
				return parseDuration(v)
			case int:
				return Duration(time.Duration(v) * time.Second), nil
			case int64:
				return Duration(time.Duration(v) * time.Second), nil
			case float64:
				return Duration(time.Duration(int64(v)) * time.Second), nil
			default:
				return data, nil
			}
		}),
		mapstructure.StringToSliceHookFunc(","),
	)
}
