package main

import (
	"context"
	"os"
	"strings"

	"github.com/rifadigital/raffle-gateway/internal/config"
	"github.com/rifadigital/raffle-gateway/internal/repository"
	"github.com/rifadigital/raffle-gateway/pkg/logger"
	"github.com/rifadigital/raffle-gateway/pkg/pg"
)

// main migrates the schema and optionally seeds the number pool:
//
//	cli --env=.env --dir=./migrations [--seed]
func main() {
	err := config.Load(getEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
	}

	pgConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}
	err = pg.Migrate(pgConf, getMigrationPath())
	if err != nil {
		logger.Error("migration: error running migrations", "error", err)
		return
	}

	if !hasArg("--seed") {
		return
	}

	db, err := pg.CreateReadWrite(pgConf, pgConf, false)
	if err != nil {
		logger.Error("seed: failed connecting to pg", "error", err)
		return
	}

	ticketRepo := repository.NewTicketRepository(db)
	inserted, err := ticketRepo.Seed(context.Background(),
		config.Get().RaffleID,
		config.Get().RaffleMinNumber,
		config.Get().RaffleMaxNumber)
	if err != nil {
		logger.Error("seed: error seeding number pool", "error", err)
		return
	}
	logger.Info("seed: number pool ready",
		"raffle_id", config.Get().RaffleID,
		"inserted", inserted)
}

func hasArg(name string) bool {
	for _, v := range os.Args {
		if v == name {
			return true
		}
	}
	return false
}

func getEnvPath() string {
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
	if _, err := os.Open(".env"); err != nil {
		return ""
	}
	return ".env"
}

func getMigrationPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--dir=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed migrations dir, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return "./migrations"
}
