// Package cli provides the command line interface of the santacall service.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/santacall/santacall/internal/pkg/env"
	"github.com/santacall/santacall/internal/pkg/log"
	"github.com/santacall/santacall/internal/pkg/service/common/cliconfig"
	"github.com/santacall/santacall/internal/pkg/service/santacall/config"
	"github.com/santacall/santacall/internal/pkg/utils/errors"
	"github.com/santacall/santacall/internal/pkg/validator"
)

const description = `Santa Call

Books personalized video calls with Santa,
renders the video and places the call at the booked slot.
`

type RootCommand struct {
	cmd         *cobra.Command
	fs          afero.Fs
	envs        *env.Map
	stdout      io.Writer
	stderr      io.Writer
	logger      log.Logger // bootstrap logger, used before the configuration is loaded
	configFiles []string
	envDir      string
}

// NewRootCommand creates parent of all sub-commands.
func NewRootCommand(stdout, stderr io.Writer, envs *env.Map, fs afero.Fs) *RootCommand {
	root := &RootCommand{
		fs:     fs,
		envs:   envs,
		stdout: stdout,
		stderr: stderr,
		logger: log.NewServiceLogger(stderr, log.LogFormatConsole, false),
	}

	root.cmd = &cobra.Command{
		Use:           path.Base(os.Args[0]),
		Short:         description,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.cmd.SetOut(stdout)
	root.cmd.SetErr(stderr)

	flags := root.cmd.PersistentFlags()
	flags.StringSliceVar(&root.configFiles, "config-file", nil, "Path to a YAML config file, the flag can be repeated.")
	flags.StringVar(&root.envDir, "env-dir", ".", "Directory with the \".env\" files.")

	root.cmd.AddCommand(
		serveCommand(root),
		slotCommand(root),
	)

	return root
}

// Execute the command, the exit code is returned.
func (root *RootCommand) Execute(ctx context.Context, args []string) int {
	root.cmd.SetArgs(args)
	if err := root.cmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(root.stderr, errors.Format(err, errors.FormatAsSentences()))
		return 1
	}
	return 0
}

// bind sets the target config from the config files, envs and flags of the command, then the config is validated.
func (root *RootCommand) bind(cmd *cobra.Command, target any) error {
	envs := env.LoadDotEnv(cmd.Context(), root.logger, root.envs, root.fs, []string{root.envDir})

	_, err := cliconfig.BindFlagsAndEnvToStruct(target, cmd.Flags(), envs.Lookup, cliconfig.NewEnvNaming(config.EnvPrefix), root.configFiles...)
	if err != nil {
		return err
	}

	if err := validator.New().Validate(cmd.Context(), target); err != nil {
		return errors.PrefixError(err, "invalid configuration")
	}
	return nil
}
