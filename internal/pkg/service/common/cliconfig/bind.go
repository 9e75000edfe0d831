package cliconfig

import (
	"os"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

type SetBy string

const (
	SetByFlagDefault SetBy = "default"
	SetByConfigFile  SetBy = "config"
	SetByEnv         SetBy = "env"
	SetByFlag        SetBy = "flag"
)

// EnvLookup returns value of the environment variable, for example os.LookupEnv.
type EnvLookup func(key string) (string, bool)

// EnvNaming converts a flag name to an environment variable name, for example "api.listen" -> "SANTACALL_API_LISTEN".
type EnvNaming struct {
	prefix string
}

func NewEnvNaming(prefix string) EnvNaming {
	return EnvNaming{prefix: prefix}
}

func (n EnvNaming) FlagToEnv(flagName string) string {
	return n.prefix + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(flagName))
}

// BindFlagsAndEnvToStruct sets the config fields from config files, environment variables and flags.
// Priority, from the highest: changed flag, environment variable, config file, flag default.
// Fields not present in any source keep their current value.
func BindFlagsAndEnvToStruct(target any, fs *pflag.FlagSet, envs EnvLookup, naming EnvNaming, configFiles ...string) (map[string]SetBy, error) {
	if v := reflect.ValueOf(target); v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return nil, errors.Errorf(`target must be a pointer to a struct, found "%T"`, target)
	}

	v := viper.New()
	setBy, err := BindFlagsAndEnvToViper(v, fs, envs, naming, configFiles...)
	if err != nil {
		return nil, err
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, errors.PrefixError(err, "cannot create config decoder")
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, errors.PrefixError(err, "invalid configuration")
	}

	return setBy, nil
}

// BindFlagsAndEnvToViper collects values of all flags defined in the FlagSet to the Viper registry.
func BindFlagsAndEnvToViper(v *viper.Viper, fs *pflag.FlagSet, envs EnvLookup, naming EnvNaming, configFiles ...string) (map[string]SetBy, error) {
	errs := errors.NewMultiError()
	setBy := make(map[string]SetBy)

	// Config files, a later file overrides an earlier one
	fileKeys := make(map[string]bool)
	for _, path := range configFiles {
		values, err := readConfigFile(path)
		if err != nil {
			errs.Append(err)
			continue
		}
		for _, key := range flattenKeys(values, "") {
			fileKeys[key] = true
		}
		if err := v.MergeConfigMap(values); err != nil {
			errs.AppendWithPrefixf(err, `cannot merge config file "%s"`, path)
		}
	}

	fs.VisitAll(func(flag *pflag.Flag) {
		key := flag.Name
		envName := naming.FlagToEnv(key)
		envValue, envFound := envs(envName)
		switch {
		case flag.Changed:
			v.Set(key, flagValue(flag))
			setBy[key] = SetByFlag
		case envFound:
			v.Set(key, envValue)
			setBy[key] = SetByEnv
		case fileKeys[key]:
			setBy[key] = SetByConfigFile
		default:
			v.SetDefault(key, flagValue(flag))
			setBy[key] = SetByFlagDefault
		}
	})

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	return setBy, nil
}

func readConfigFile(path string) (map[string]any, error) {
	content, err := os.ReadFile(path) // nolint: gosec
	if err != nil {
		return nil, errors.PrefixErrorf(err, `cannot read config file "%s"`, path)
	}

	values := make(map[string]any)
	if err := yaml.Unmarshal(content, &values); err != nil {
		return nil, errors.PrefixErrorf(err, `cannot decode config file "%s"`, path)
	}
	return values, nil
}

func flattenKeys(values map[string]any, parent string) (out []string) {
	for key, value := range values {
		if parent != "" {
			key = parent + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			out = append(out, flattenKeys(nested, key)...)
		} else {
			out = append(out, key)
		}
	}
	return out
}

func flagValue(flag *pflag.Flag) any {
	if v, ok := flag.Value.(pflag.SliceValue); ok {
		return v.GetSlice()
	}
	return flag.Value.String()
}
