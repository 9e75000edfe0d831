package cliconfig_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santacall/santacall/internal/pkg/service/common/cliconfig"
)

func envs(m map[string]string) cliconfig.EnvLookup {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func defaultConfig() Config {
	return Config{
		String:          "value1",
		Int:             123,
		Float:           4.56,
		StringWithUsage: "value2",
		Duration:        time.Minute,
		Nested:          Nested{Foo: "foo", Bar: 789},
	}
}

func TestGenerateFlags(t *testing.T) {
	t.Parallel()

	fs := pflag.NewFlagSet("", pflag.ContinueOnError)
	require.NoError(t, cliconfig.GenerateFlags(defaultConfig(), fs))

	var names []string
	fs.VisitAll(func(flag *pflag.Flag) {
		names = append(names, flag.Name+"="+flag.DefValue)
	})
	assert.Equal(t, []string{
		"bool=false",
		"duration=1m0s",
		"float=4.56",
		"int=123",
		"nested.bar=789",
		"nested.foo-123=foo",
		"string=value1",
		"string-with-usage=value2",
	}, names)
	assert.Equal(t, "An usage text.", fs.Lookup("string-with-usage").Usage)

	assert.Error(t, cliconfig.GenerateFlags("string", fs))
}

func TestBindFlagsAndEnvToStruct_Default(t *testing.T) {
	t.Parallel()

	target := defaultConfig()
	fs := pflag.NewFlagSet("", pflag.ContinueOnError)
	require.NoError(t, cliconfig.GenerateFlags(target, fs))
	require.NoError(t, fs.Parse(nil))

	setBy, err := cliconfig.BindFlagsAndEnvToStruct(&target, fs, envs(nil), cliconfig.NewEnvNaming("MY_APP_"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), target)
	assert.Equal(t, cliconfig.SetByFlagDefault, setBy["nested.bar"])
}

func TestBindFlagsAndEnvToStruct_Priority(t *testing.T) {
	t.Parallel()

	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(`
int: 5
bool: true
duration: 2h
nested:
  foo-123: from-file
  bar: 1
`), 0o600))

	target := defaultConfig()
	fs := pflag.NewFlagSet("", pflag.ContinueOnError)
	require.NoError(t, cliconfig.GenerateFlags(target, fs))
	require.NoError(t, fs.Parse([]string{"--nested.foo-123", "from-flag", "--float", "78.90"}))

	lookup := envs(map[string]string{
		"MY_APP_NESTED_FOO_123": "from-env", // not applied, flag has higher priority
		"MY_APP_NESTED_BAR":     "2000",     // overrides config file
		"MY_APP_STRING":         "abc",
	})

	setBy, err := cliconfig.BindFlagsAndEnvToStruct(&target, fs, lookup, cliconfig.NewEnvNaming("MY_APP_"), configFile)
	require.NoError(t, err)
	assert.Equal(t, Config{
		String:          "abc",
		Int:             5,
		Float:           78.90,
		Bool:            true,
		StringWithUsage: "value2",
		Duration:        2 * time.Hour,
		Nested:          Nested{Foo: "from-flag", Bar: 2000},
	}, target)
	assert.Equal(t, map[string]cliconfig.SetBy{
		"string":            cliconfig.SetByEnv,
		"int":               cliconfig.SetByConfigFile,
		"float":             cliconfig.SetByFlag,
		"bool":              cliconfig.SetByConfigFile,
		"string-with-usage": cliconfig.SetByFlagDefault,
		"duration":          cliconfig.SetByConfigFile,
		"nested.foo-123":    cliconfig.SetByFlag,
		"nested.bar":        cliconfig.SetByEnv,
	}, setBy)
}

func TestBindFlagsAndEnvToStruct_InvalidValue(t *testing.T) {
	t.Parallel()

	target := defaultConfig()
	fs := pflag.NewFlagSet("", pflag.ContinueOnError)
	require.NoError(t, cliconfig.GenerateFlags(target, fs))
	require.NoError(t, fs.Parse(nil))

	_, err := cliconfig.BindFlagsAndEnvToStruct(&target, fs, envs(map[string]string{"MY_APP_DURATION": "soon"}), cliconfig.NewEnvNaming("MY_APP_"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")

	_, err = cliconfig.BindFlagsAndEnvToStruct(&target, fs, envs(nil), cliconfig.NewEnvNaming("MY_APP_"), "/missing/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `cannot read config file "/missing/config.yaml"`)
}

func TestEnvNaming(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "SANTACALL_BACKENDS_RENDER_URL", cliconfig.NewEnvNaming("SANTACALL_").FlagToEnv("backends.render.url"))
	assert.Equal(t, "SANTACALL_CONVERSATION_RING_TIMEOUT", cliconfig.NewEnvNaming("SANTACALL_").FlagToEnv("conversation.ring-timeout"))
}
