package main

import (
	"io"
	"os"
)

type command interface {
	Run(args []string) int
}

type commandDeps struct {
	Stdout            io.Writer
	Stderr            io.Writer
	RunServe          func(args []string) int
	RunValidateConfig func(args []string) int
	RunCompletion     func(args []string, out io.Writer, errOut io.Writer) int
}

func defaultCommandDeps() commandDeps {
	return commandDeps{
		Stdout:            os.Stdout,
		Stderr:            os.Stderr,
		RunServe:          runServe,
		RunValidateConfig: runValidateConfig,
		RunCompletion:     runCompletion,
	}
}

type serveCommand struct {
	deps commandDeps
}

func (c serveCommand) Run(args []string) int {
	return c.deps.RunServe(args)
}

type validateConfigCommand struct {
	deps commandDeps
}

func (c validateConfigCommand) Run(args []string) int {
	return c.deps.RunValidateConfig(args)
}

type completionCommand struct {
	deps commandDeps
}

func (c completionCommand) Run(args []string) int {
	return c.deps.RunCompletion(args, c.deps.Stdout, c.deps.Stderr)
}

func resolveCommand(args []string, deps commandDeps) (command, []string) {
	if len(args) > 1 && args[0] == "config" && args[1] == "validate" {
		return validateConfigCommand{deps: deps}, args[2:]
	}
	if len(args) > 0 && args[0] == "completion" {
		return completionCommand{deps: deps}, args[1:]
	}
	if len(args) > 0 && args[0] == "serve" {
		return serveCommand{deps: deps}, args[1:]
	}
	return serveCommand{deps: deps}, args
}
