// Package env loads environment variables of the process and of the ".env" files.
package env

import (
	"context"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"

	"github.com/santacall/santacall/internal/pkg/log"
	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

// Files returns the names of the env files in the order of precedence.
func Files() []string {
	return []string{
		".env.local",
		".env",
	}
}

// LoadDotEnv loads envs from the env files in the dirs, if they exist.
// Existing envs take precedence.
func LoadDotEnv(ctx context.Context, logger log.Logger, osEnvs *Map, fs afero.Fs, dirs []string) *Map {
	envs := FromMap(osEnvs.ToMap())

	for _, dir := range dirs {
		for _, file := range Files() {
			path := filepath.Join(dir, file)
			info, err := fs.Stat(path)
			switch {
			case err != nil && os.IsNotExist(err):
				continue
			case err != nil:
				logger.Warnf(ctx, `cannot check if path "%s" exists: %s`, path, err)
				continue
			case info.IsDir():
				continue
			}

			fileEnvs, err := LoadEnvFile(fs, path)
			if err != nil {
				logger.Warn(ctx, err.Error())
				continue
			}
			logger.Infof(ctx, `loaded env file "%s"`, path)

			envs.Merge(fileEnvs, false)
		}
	}

	return envs
}

func LoadEnvFile(fs afero.Fs, path string) (*Map, error) {
	content, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.PrefixErrorf(err, `cannot read env file "%s"`, path)
	}

	envs, err := godotenv.UnmarshalBytes(content)
	if err != nil {
		return nil, errors.PrefixErrorf(err, `cannot parse env file "%s"`, path)
	}

	return FromMap(envs), nil
}
