package cliconfig_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santacall/santacall/internal/pkg/service/common/cliconfig"
	"github.com/santacall/santacall/internal/pkg/service/common/duration"
)

type dumpConfig struct {
	Config   `mapstructure:"base"`
	Timeout  duration.Duration  `mapstructure:"timeout"`
	Optional *duration.Duration `mapstructure:"optional"`
}

func TestDump(t *testing.T) {
	t.Parallel()

	cfg := dumpConfig{Config: defaultConfig(), Timeout: duration.From(123 * time.Second)}
	cfg.String = "password" // has sensitive:true tag

	dump, err := cliconfig.Dump(cfg)
	require.NoError(t, err)
	assert.Equal(t, cliconfig.KVs{
		{Key: "base.int", Value: "123"},
		{Key: "base.float", Value: "4.56"},
		{Key: "base.bool", Value: "false"},
		{Key: "base.string-with-usage", Value: "value2"},
		{Key: "base.duration", Value: "1m0s"},
		{Key: "base.nested.foo-123", Value: "foo"},
		{Key: "base.nested.bar", Value: "789"},
		{Key: "timeout", Value: "2m3s"},
		{Key: "optional", Value: "<nil>"},
	}, dump)
	assert.Equal(t, strings.TrimSpace(`
base.int=123; base.float=4.56; base.bool=false; base.string-with-usage=value2; base.duration=1m0s; base.nested.foo-123=foo; base.nested.bar=789; timeout=2m3s; optional=<nil>;
`), dump.String())
	assert.NotContains(t, dump.String(), "password")
}
