package main

import (
	"dailybrief/cmd/cmd"
	"dailybrief/internal/logger"
)

func main() {
	logger.Init()
	cmd.Execute()
}
