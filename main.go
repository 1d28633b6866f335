package main

import (
	"appointly/core/logger"
	"appointly/core/server"
)

func main() {
	if err := server.Run(); err != nil {
		logger.Error("run server error", "error", err)
	}
}
