package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/golang/glog"
	"github.com/urfave/cli"
	"github.com/wnxd/ndbg/debugger"
	"github.com/wnxd/ndbg/internal/config"
	"github.com/wnxd/ndbg/internal/console"
	engine "github.com/wnxd/ndbg/internal/debugger"
	"github.com/wnxd/ndbg/internal/display"
	"github.com/wnxd/ndbg/internal/native/ptrace"
	"github.com/wnxd/ndbg/internal/script"
	"github.com/wnxd/ndbg/internal/symbol"
)

const shutdownTimeout = 5 * time.Second

func main() {
	app := cli.NewApp()
	app.Name = console.Product
	app.Usage = "attach to or launch a process and debug it"
	app.UsageText = "ndbg [options] <program> [args...]"
	app.Version = console.Version
	app.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "pid",
			Usage: "Attach to a running process instead of launching one",
		},
		cli.StringFlag{
			Name:  "config",
			Usage: "Path to a TOML configuration file",
		},
		cli.StringFlag{
			Name:  "script",
			Usage: "Lua script handling debug events, overrides the config file",
		},
		cli.IntFlag{
			Name:  "verbose",
			Usage: "Diagnostic log verbosity",
		},
		cli.BoolFlag{
			Name:  "logtostderr",
			Usage: "Write diagnostic logs to stderr instead of files",
		},
	}
	app.Action = run

	err := app.Run(os.Args)
	glog.Flush()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ndbg: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(c *cli.Context) error {
	if err := flag.Set("v", strconv.Itoa(c.Int("verbose"))); err != nil {
		return err
	}
	return flag.Set("logtostderr", strconv.FormatBool(c.Bool("logtostderr")))
}

func run(c *cli.Context) error {
	if err := setupLogging(c); err != nil {
		return err
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if path := c.String("script"); path != "" {
		cfg.Script = path
	}

	out := display.Stdio()
	proc, name, err := start(c, cfg)
	if err != nil {
		return err
	}

	dbg := engine.New(out)
	s, err := dbg.NewSession(proc, engine.Options{
		Name:        name,
		Path:        proc.Path(),
		Base:        proc.ImageBase(),
		Attached:    proc.Attached(),
		WaitTimeout: cfg.WaitTimeout(),
		Symbols:     symbol.New(),
	})
	if err != nil {
		proc.Close()
		return err
	}

	var handler debugger.Handler = debugger.HandlerFunc(dbg.HandleEvent)
	if cfg.Script != "" {
		h := script.New(handler, out)
		defer h.Close()
		if err = h.DoFile(cfg.Script); err != nil {
			s.Close()
			return fmt.Errorf("script %s: %w", cfg.Script, err)
		}
		handler = h
	}
	s.RegisterEventHandler(&startup{next: handler, dbg: dbg, breakpoints: cfg.Breakpoints})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)
	go func() {
		<-s.Done()
		cancel()
	}()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)
	go func() {
		for range interrupts {
			if err := dbg.Break(); err != nil {
				out.Error("break: %v", err)
			}
		}
	}()

	con := console.New(dbg, os.Stdin, console.WithPrompt(cfg.Prompt))
	if err = con.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		glog.Warningf("console: %v", err)
	}
	cancel()
	select {
	case <-s.Done():
	case <-time.After(shutdownTimeout):
		return errors.New("session did not shut down")
	}
	return s.Err()
}

func start(c *cli.Context, cfg *config.Config) (*ptrace.Process, string, error) {
	if pid := c.Int("pid"); pid > 0 {
		proc, err := ptrace.Attach(pid)
		if err != nil {
			return nil, "", err
		}
		return proc, filepath.Base(proc.Path()), nil
	}
	if c.NArg() == 0 {
		cli.ShowAppHelp(c)
		return nil, "", errors.New("no program given")
	}
	path, err := exec.LookPath(c.Args().First())
	if err != nil {
		return nil, "", err
	}
	proc, err := ptrace.Launch(ptrace.Config{
		Path:          path,
		Args:          c.Args().Tail(),
		Env:           os.Environ(),
		Stdin:         os.Stdin,
		Stdout:        os.Stdout,
		Stderr:        os.Stderr,
		Suspended:     true,
		DetachOnClose: !cfg.KillOnExit,
	})
	if err != nil {
		return nil, "", err
	}
	return proc, filepath.Base(path), nil
}
