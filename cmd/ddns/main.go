package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/judwhite/go-svc"
	"github.com/jxo-me/ddnsd/cmd/ddns/cliutil"
	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/config/parsing"
	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/jxo-me/ddnsd/core/service"
	sdkcache "github.com/jxo-me/ddnsd/sdk/cache"
	"github.com/urfave/cli/v2"
)

var (
	Version   = "DEV"
	BuildTime = "unknown"
	BuildType = ""
)

func main() {
	bInfo := cliutil.GetBuildInfo(BuildType, Version)

	app := &cli.App{}
	app.Name = "ddns"
	app.Usage = "keeps DNS records pointed at this machine's public address"
	app.UsageText = "ddns [global options] [command] [command options]"
	app.Version = fmt.Sprintf("%s (built %s%s)", Version, BuildTime, bInfo.GetBuildTypeMsg())
	app.Description = `ddns periodically discovers the public IPv4/IPv6 address of this machine and,
	when it changes, updates every configured DNS provider. The last published address
	is kept in an integrity checked cache file so that restarts do not cause updates.`
	app.Flags = flags()
	app.Action = runCommand().Action
	app.Commands = commands(bInfo)

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "configuration file (yaml, json or toml)",
			EnvVars: []string{config.ConfigFilePathENV},
		},
	}
}

func commands(bInfo *cliutil.BuildInfo) []*cli.Command {
	return []*cli.Command{
		runCommand(),
		{
			Name:  "check",
			Usage: "Run a single fetch, compare and update cycle and exit",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "dry-run",
					Usage: "only report what would be updated",
				},
			},
			Action: cliutil.ConfiguredAction(resolveConfigPath, checkAction),
		},
		{
			Name:  "cache",
			Usage: "Inspect the address cache",
			Subcommands: []*cli.Command{
				{
					Name:   "show",
					Usage:  "Print the cached record",
					Action: cliutil.ConfiguredAction(resolveConfigPath, cacheShowAction),
				},
				{
					Name:   "clear",
					Usage:  "Remove the cache file, forcing an update on the next run",
					Action: cliutil.ConfiguredAction(resolveConfigPath, cacheClearAction),
				},
			},
		},
		{
			Name:  "config",
			Usage: "Print the resolved configuration",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "format",
					Value: "yaml",
					Usage: "output format, yaml or json",
				},
			},
			Action: cliutil.ConfiguredAction(resolveConfigPath, func(c *cli.Context, _ string, cfg *config.Config) error {
				return cfg.Write(c.App.Writer, c.String("format"))
			}),
		},
		{
			Name:  "version",
			Usage: "Print the version",
			Action: cliutil.Action(func(c *cli.Context) error {
				_, err := fmt.Fprintln(c.App.Writer, bInfo.String())
				return err
			}),
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the daemon (default)",
		Action: cliutil.ConfiguredAction(resolveConfigPath, func(c *cli.Context, path string, cfg *config.Config) error {
			return svc.Run(&program{configPath: path, cfg: cfg}, syscall.SIGINT, syscall.SIGTERM)
		}),
	}
}

func checkAction(c *cli.Context, _ string, cfg *config.Config) error {
	if c.Bool("dry-run") {
		cfg.DryRun = true
	}
	log, _ := loggers(cfg.Log)
	s, err := parsing.ParseService(cfg, log)
	if err != nil {
		return err
	}
	defer s.Stop()

	res := s.RunOnce(context.Background())
	fmt.Fprintf(c.App.Writer, "outcome: %s\nrecord: %s\n", res.Outcome, res.Record)
	if res.CacheHit {
		fmt.Fprintf(c.App.Writer, "previous: %s\n", res.Previous)
	}
	for _, p := range res.Providers {
		switch {
		case p.Err != nil:
			fmt.Fprintf(c.App.Writer, "  %s: failed: %v\n", p.Provider, p.Err)
		case p.Changed:
			fmt.Fprintf(c.App.Writer, "  %s: updated\n", p.Provider)
		default:
			fmt.Fprintf(c.App.Writer, "  %s: up to date\n", p.Provider)
		}
	}
	if res.Outcome == service.OutcomeFailed {
		return cli.Exit(res.Err, 1)
	}
	return nil
}

func cacheShowAction(c *cli.Context, _ string, cfg *config.Config) error {
	cache := sdkcache.New(cfg.Cache.Path)
	record, ok, err := cache.Get()
	if err != nil {
		if sdkcache.IsCorrupt(err) {
			return cli.Exit(fmt.Sprintf("%s is corrupt: %v", cache.Path(), err), 1)
		}
		return err
	}
	if !ok {
		fmt.Fprintf(c.App.Writer, "%s: no cached record\n", cache.Path())
		return nil
	}
	fmt.Fprintf(c.App.Writer, "%s\n", cache.Path())
	for _, v := range []ddns.IPVersion{ddns.V4, ddns.V6} {
		addr := "none"
		if a := record.Get(v); a.IsValid() {
			addr = a.String()
		}
		fmt.Fprintf(c.App.Writer, "  %s: %s\n", v, addr)
	}
	fmt.Fprintf(c.App.Writer, "  flags: %#04x\n", cache.Flags())
	return nil
}

func cacheClearAction(c *cli.Context, _ string, cfg *config.Config) error {
	cache := sdkcache.New(cfg.Cache.Path)
	if err := cache.Clear(); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s removed\n", cache.Path())
	return nil
}
