package main

import (
	"github.com/joho/godotenv"

	"github.com/astralhq/astral-assist/cmd"
)

func main() {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cmd.Execute()
}
