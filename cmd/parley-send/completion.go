package main

import (
	"fmt"
	"io"
)

func runCompletion(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(errOut, "usage: parley-send completion [bash|zsh]")
		return 1
	}
	switch args[0] {
	case "bash":
		_, _ = io.WriteString(out, bashCompletionScript)
		return 0
	case "zsh":
		_, _ = io.WriteString(out, zshCompletionScript)
		return 0
	default:
		fmt.Fprintln(errOut, "usage: parley-send completion [bash|zsh]")
		return 1
	}
}

const bashCompletionScript = `# Bash completion for parley-send
_parley_send_complete() {
  local cur prev words cword
  _init_completion || return

  if [[ "$cword" -eq 1 && "$cur" != -* ]]; then
    COMPREPLY=( $(compgen -W "completion" -- "$cur") )
    return
  fi

  if [[ "$prev" == "completion" ]]; then
    COMPREPLY=( $(compgen -W "bash zsh" -- "$cur") )
    return
  fi

  if [[ "$cur" == -* ]]; then
    COMPREPLY=( $(compgen -W "--url --token --no-wait --timeout --poll-interval --verbose --debug --help --version" -- "$cur") )
    return
  fi
}

complete -F _parley_send_complete parley-send
`

const zshCompletionScript = `#compdef parley-send

_parley_send() {
  local -a options
  options=(
    '--url[Parley server URL]:URL'
    '--token[Auth token]:TOKEN'
    '--no-wait[Print the run id and exit without waiting]'
    '--timeout[Give up waiting after this long]:DURATION'
    '--poll-interval[Delay between run status checks]:DURATION'
    '--verbose[Verbose output]'
    '--debug[Debug output]'
    '--help[Show help]'
    '--version[Print version]'
  )

  _arguments -C \
    $options \
    '1: :->subcmd' \
    '*::arg:->args'

  case $state in
    subcmd)
      _values 'subcommand' completion
      ;;
    args)
      _values 'shell' bash zsh
      ;;
  esac
}

_parley_send "$@"
`
