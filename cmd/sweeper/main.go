package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rifadigital/raffle-gateway/internal/config"
	"github.com/rifadigital/raffle-gateway/internal/repository"
	"github.com/rifadigital/raffle-gateway/internal/sweeper"
	"github.com/rifadigital/raffle-gateway/pkg/logger"
	"github.com/rifadigital/raffle-gateway/pkg/pg"
	"github.com/rifadigital/raffle-gateway/pkg/prom"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	db, err := pg.CreateReadWrite(readConf, writeConf, false)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err := prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	ticketRepo := repository.NewTicketRepository(db)

	sw, err := sweeper.New(ticketRepo, sweeper.Config{
		RaffleID:       config.Get().RaffleID,
		ReservationTTL: config.Get().ReservationTTL,
		Tick:           config.Get().ReservationSweepTick,
	})
	if err != nil {
		logger.Error("failed creating sweeper", "error", err)
		return
	}

	if err := sw.Start(); err != nil {
		logger.Error("failed to start sweeper", "error", err)
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case <-c:
		if err := sw.Stop(); err != nil {
			logger.Error("error stopping sweeper", "error", err)
		}
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
