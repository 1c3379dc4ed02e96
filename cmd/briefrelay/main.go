// Copyright (C) 2026  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/briefrelay/internal/log"
)

const usageText = `
Usage:
  briefrelay [OPTIONS] COMMAND

  Relay mail to a single upstream server and keep an audit trail.

Version:
  %s

Commands:
  start     Start the relay
  config    Print the effective configuration

Options:
%s
`

var (
	// Version is set at compile-time.
	Version string
)

func init() {
	viper.SetDefault("log.level", "debug")
	viper.SetDefault("log.format", "json")
}

func main() {
	var configFilename string

	flags := pflag.NewFlagSet("briefrelay", pflag.ContinueOnError)
	flags.StringVarP(&configFilename, "config", "c", "", "Path to a configuration file")
	flags.Usage = printUsage(flags)

	if err := flags.Parse(os.Args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}

		log.Fatal().Err(err).Msg("could not parse arguments")
	}

	switch commandName := flags.Arg(1); commandName {
	case "start":
		setupConfig(configFilename)
		setupLogger()
		printConfig()
		runStart()
	case "config":
		setupConfig(configFilename)
		setupLogger()
		writeConfig(os.Stdout)
	default:
		flags.Usage()
	}
}

func runStart() {
	cmd, err := newStartCommand()
	if err != nil {
		log.Fatal().Err(err).Msg("could not initialize the application")
	}

	if err := cmd.run(); err != nil {
		log.Fatal().Err(err).Msg("relay stopped with an error")
	}
}

func printUsage(flags *pflag.FlagSet) func() {
	return func() {
		fmt.Fprintf(os.Stderr, usageText,
			Version,
			flags.FlagUsages())
	}
}

func setupLogger() {
	level := viper.GetString("log.level")

	if err := log.Setup(os.Stderr, level, viper.GetString("log.format")); err != nil {
		log.Fatal().Err(err).Msg("could not set up logging")
	}

	log.Info().Str("level", level).Msg("logger ready")
}

func setupConfig(filename string) {
	viper.SetTypeByDefaultValue(true)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetEnvPrefix("BRIEFRELAY")

	if filename != "" {
		readConfig(filename)
	} else {
		log.Info().Msg("no config file provided. using environment only")
	}
}

func readConfig(filename string) {
	log.Info().Str("filename", filename).Msg("loading configuration")
	viper.SetConfigFile(filename)

	if err := viper.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			log.Warn().Err(err).Msg("configuration file missing")
		} else {
			log.Fatal().Err(err).Msg("could not load configuration")
		}
	}
}

func printConfig() {
	keys := viper.AllKeys()
	sort.Strings(keys)

	for _, key := range keys {
		v, _ := json.Marshal(viper.Get(key))
		log.Debug().RawJSON("value", v).Msg(key)
	}
}

func writeConfig(w io.Writer) {
	keys := viper.AllKeys()
	sort.Strings(keys)

	for _, key := range keys {
		v, _ := json.Marshal(viper.Get(key))
		fmt.Fprintf(w, "%s = %s\n", key, v)
	}
}
