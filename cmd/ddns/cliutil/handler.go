package cliutil

import (
	"github.com/jxo-me/ddnsd/config"
	"github.com/urfave/cli/v2"
)

const errorExitCode = 1

func Action(actionFunc cli.ActionFunc) cli.ActionFunc {
	return WithErrorHandler(actionFunc)
}

// ConfiguredAction loads the configuration named by the --config flag
// and passes it to actionFunc.
func ConfiguredAction(resolve func(string) string, actionFunc func(*cli.Context, string, *config.Config) error) cli.ActionFunc {
	return WithErrorHandler(func(c *cli.Context) error {
		path := resolve(c.String("config"))
		cfg, err := config.Load(path)
		if err != nil {
			return cli.Exit(err, errorExitCode)
		}
		return actionFunc(c, path, cfg)
	})
}

// WithErrorHandler makes every error returned by actionFunc exit the
// process with a non-zero code.
func WithErrorHandler(actionFunc cli.ActionFunc) cli.ActionFunc {
	return func(c *cli.Context) error {
		err := actionFunc(c)
		if err != nil {
			if _, ok := err.(cli.ExitCoder); !ok {
				err = cli.Exit(err.Error(), errorExitCode)
			}
		}
		return err
	}
}
