package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"git.sr.ht/~delthas/kouhai"
	"git.sr.ht/~delthas/kouhai/irc"
)

func main() {
	var configPath string
	var nickname string
	var timeout time.Duration
	var debug bool
	var version bool
	flag.StringVar(&configPath, "config", "", "path to the configuration file")
	flag.StringVar(&nickname, "nickname", "", "nick name to register with")
	flag.DurationVar(&timeout, "timeout", 0, "give up registering after this long")
	flag.BoolVar(&debug, "debug", false, "log raw protocol data")
	flag.BoolVar(&version, "version", false, "show version info")
	flag.Parse()

	if version {
		if v, ok := kouhai.BuildVersion(); ok {
			fmt.Printf("kouhai version %v\n", v)
		} else {
			fmt.Printf("kouhai (unknown version)\n")
		}
		return
	}

	if configPath == "" {
		var err error
		configPath, err = kouhai.DefaultConfigPath()
		if err != nil {
			panic(err)
		}
	}

	cfg, err := kouhai.LoadConfigFile(configPath, kouhai.Overrides{
		Nick:    nickname,
		Timeout: timeout,
		Debug:   debug,
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "the configuration file at %q was not found\n", configPath)
		} else {
			fmt.Fprintf(os.Stderr, "failed to load the configuration file at %q: %s\n", configPath, err)
		}
		os.Exit(1)
		return
	}

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().
		Timestamp().
		Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	app := kouhai.NewApp(cfg, logger)
	res, err := app.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to register: %s\n", err)
		os.Exit(1)
		return
	}

	fmt.Printf("registered as %s on %s\n", res.Nick, res.Server)
	printCaps("acknowledged", res.Acknowledged)
	printCaps("rejected", res.NotAcknowledged)
	printCaps("not advertised", res.Unanswered)
}

func printCaps(label string, caps []irc.Capability) {
	for _, c := range caps {
		fmt.Printf("%s\t%s\n", label, c)
	}
}
