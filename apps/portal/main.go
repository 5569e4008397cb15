package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/trezcool/tutorhub/apps/shared"
	"github.com/trezcool/tutorhub/client"
	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/session"
)

func main() {
	conf := core.NewConfig()
	logger := shared.NewLogger(conf, "portal")

	api, err := client.New(conf.APIBaseURL, nil)
	if err != nil {
		logger.Fatal("creating API client", err)
	}
	path, err := session.DefaultStoragePath(strings.ToLower(conf.AppName))
	if err != nil {
		logger.Fatal("locating session storage", err)
	}
	store, err := session.NewFileStorage(path)
	if err != nil {
		logger.Fatal("opening session storage", err)
	}
	sess, err := session.New(api, store, logger, session.DefaultTimeout)
	if err != nil {
		logger.Fatal("starting session", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cli := commandLine{sess: sess, api: api, out: os.Stdout}
	err = cli.run(ctx, os.Args)

	stop()
	sess.Close()
	if err != nil {
		if err != errHelp {
			_, _ = fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
