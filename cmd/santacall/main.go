package main

import (
	"context"
	"os"

	"github.com/spf13/afero"

	"github.com/santacall/santacall/internal/pkg/env"
	"github.com/santacall/santacall/internal/pkg/service/santacall/cli"
)

func main() {
	root := cli.NewRootCommand(os.Stdout, os.Stderr, env.FromOs(), afero.NewOsFs())
	os.Exit(root.Execute(context.Background(), os.Args[1:]))
}
