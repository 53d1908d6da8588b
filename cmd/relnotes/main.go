package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
)

func main() {
	if len(os.Args) < 2 { //nolint:mnd // program name plus subcommand
		usage()
		os.Exit(1)
	}

	var err error

	switch os.Args[1] {
	case "serve":
		serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
		serveCmd.Usage = func() {
			fmt.Fprintf(os.Stderr, "Usage: relnotes serve [flags]\n\nStart the HTTP trigger service.\n\nFlags:\n")
			serveCmd.PrintDefaults()
		}
		addr := serveCmd.String("addr", "", "listen address (default: server.addr from config or :8080)")
		cfgPath := serveCmd.String("config", "", "path to configuration file")
		envFile := serveCmd.String("env", ".env", "path to .env file (ignored if missing)")
		verbose := serveCmd.Bool("verbose", false, "log at debug level")
		_ = serveCmd.Parse(os.Args[2:])

		if err = loadDotEnv(*envFile); err == nil {
			err = serve(*cfgPath, *addr, *verbose)
		}
	case "run":
		runCmd := flag.NewFlagSet("run", flag.ExitOnError)
		runCmd.Usage = func() {
			fmt.Fprintf(os.Stderr, "Usage: relnotes run [flags] PROJECT FIXVERSION ISSUETYPE\n\nEnrich one fix version and print the release notes.\n\nFlags:\n")
			runCmd.PrintDefaults()
		}
		cfgPath := runCmd.String("config", "", "path to configuration file")
		envFile := runCmd.String("env", ".env", "path to .env file (ignored if missing)")
		maxResults := runCmd.String("max", "", "maximum number of issues to fetch")
		verbose := runCmd.Bool("verbose", false, "print progress events")
		_ = runCmd.Parse(os.Args[2:])

		if runCmd.NArg() != 3 { //nolint:mnd // project, fix version, issue type
			runCmd.Usage()
			os.Exit(1)
		}

		if err = loadDotEnv(*envFile); err == nil {
			err = runOnce(*cfgPath, runCmd.Arg(0), runCmd.Arg(1), runCmd.Arg(2), *maxResults, *verbose)
		}
	case "profiles":
		profilesCmd := flag.NewFlagSet("profiles", flag.ExitOnError)
		profilesCmd.Usage = func() {
			fmt.Fprintf(os.Stderr, "Usage: relnotes profiles [flags]\n\nShow the effective model profile and parameter adjustments.\n\nFlags:\n")
			profilesCmd.PrintDefaults()
		}
		cfgPath := profilesCmd.String("config", "", "path to configuration file")
		envFile := profilesCmd.String("env", ".env", "path to .env file (ignored if missing)")
		asJSON := profilesCmd.Bool("json", false, "print JSON instead of text")
		_ = profilesCmd.Parse(os.Args[2:])

		if err = loadDotEnv(*envFile); err == nil {
			err = profiles(*cfgPath, *asJSON)
		}
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %s\n\n", strconv.Quote(os.Args[1]))
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: relnotes <command> [flags]\n\nCommands:\n"+
		"  serve     Start the HTTP trigger service\n"+
		"  run       Enrich one fix version and print the release notes\n"+
		"  profiles  Show the effective model profile\n")
}
