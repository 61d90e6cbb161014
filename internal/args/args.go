package args

import (
	"flag"
	"os"
)

type Environment string

const (
	EnvironmentDevelopment Environment = "development"
	EnvironmentProduction  Environment = "production"
)

var configFilePath string
var environment string
var command string
var rest []string

// Init parses the global flags. Everything after the command name is left to
// the command itself, see Rest.
func Init() {
	InitFrom(os.Args[1:])
}

func InitFrom(arguments []string) {
	fs := flag.NewFlagSet("chunkyard", flag.ExitOnError)
	fs.StringVar(&configFilePath, "config", "", "path to a yaml config file")
	fs.StringVar(&environment, "environment", string(EnvironmentDevelopment), "development or production")

	_ = fs.Parse(arguments)

	command = fs.Arg(0)
	if fs.NArg() > 1 {
		rest = fs.Args()[1:]
	} else {
		rest = nil
	}
}

func ConfigFilePath() string {
	return configFilePath
}

func IsProduction() bool {
	return Environment(environment) == EnvironmentProduction
}

func Command() string {
	return command
}

func Rest() []string {
	return rest
}
