package main

import (
	"os"

	"github.com/DanielHall977/sqlalchemy-1/internal/cli/commands"
)

// Version information - set at build time with
// -ldflags "-X main.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	commands.Version = Version
	commands.GitCommit = GitCommit
	commands.BuildDate = BuildDate

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
