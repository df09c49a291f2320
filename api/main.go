package main

import (
	"github.com/joho/godotenv"

	"github.com/helixml/consoleviewer/api/cmd/consoleviewer"
)

func main() {
	_ = godotenv.Load()
	consoleviewer.Execute()
}
