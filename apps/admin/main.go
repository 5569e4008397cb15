package main

import (
	"fmt"
	"os"

	"github.com/trezcool/tutorhub/apps/shared"
	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/profile"
	"github.com/trezcool/tutorhub/core/user"
)

func main() {
	conf := core.NewConfig()
	logger := shared.NewLogger(conf, "admin")

	// set up DB
	repos, err := shared.OpenRepositories(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}

	// set up services: decisions must reach the API's cache & event subscribers
	redisClient := shared.NewRedisClient(conf)
	store, err := shared.NewFileStore(conf)
	if err != nil {
		logger.Fatal("opening file storage", err)
	}
	mailSvc, closeMail, err := shared.NewEmailService(conf, logger)
	if err != nil {
		logger.Fatal("opening mail service", err)
	}
	events := shared.NewEventBroker(conf, redisClient, logger)
	user.LoadCommonPasswords(logger)
	core.ParseEmailTemplates(conf, logger)

	usrSvc := user.NewService(conf, repos.Users, mailSvc, events, logger)
	profSvc := profile.NewService(conf, repos.Profiles, usrSvc, shared.NewCache(conf, redisClient), store, events, logger)

	// start CLI
	cli := commandLine{
		validate: shared.NewValidator(shared.NewTranslator()),
		usrRepo:  repos.Users,
		usrSvc:   usrSvc,
		profSvc:  profSvc,
		out:      os.Stdout,
	}
	if repos.SQL != nil {
		cli.db = repos.SQL.DB
	}
	err = cli.run(os.Args)

	_ = closeMail()
	if redisClient != nil {
		_ = redisClient.Close()
	}
	_ = repos.Close()
	if err != nil {
		if err != errHelp {
			_, _ = fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
