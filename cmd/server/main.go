package main

import (
	"github.com/OFFIS-RIT/mt2n/internal/server"
	"github.com/OFFIS-RIT/mt2n/internal/util"
	"github.com/OFFIS-RIT/mt2n/pkg/logger"
	"github.com/OFFIS-RIT/mt2n/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  util.GetEnvBool("DEBUG", false),
		Format: util.GetEnv("LOG_FORMAT"),
	})
	logger.Init(consoleLogger)

	server.Init()
}
