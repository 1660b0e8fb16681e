package main

import (
	"fmt"
	"io"
)

func runCompletion(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(errOut, "usage: parley completion [bash|zsh]")
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
		fmt.Fprintln(errOut, "usage: parley completion [bash|zsh]")
		return 1
	}
}

const bashCompletionScript = `# Bash completion for parley
_parley_complete() {
  local cur prev
  _get_comp_words_by_ref -n : cur prev

  if [[ "$prev" == "completion" ]]; then
    COMPREPLY=( $(compgen -W "bash zsh" -- "$cur") )
    return
  fi

  if [[ "$prev" == "--config" || "$prev" == "-config" || "$prev" == "--agents-manifest" || "$prev" == "-agents-manifest" ]]; then
    COMPREPLY=( $(compgen -f -- "$cur") )
    return
  fi

  if [[ "$prev" == "--strategy" || "$prev" == "-strategy" ]]; then
    COMPREPLY=( $(compgen -W "random roundrobin" -- "$cur") )
    return
  fi

  if [[ "$cur" == -* ]]; then
    COMPREPLY=( $(compgen -W "--config --port --token --data-dir --name --strategy --max-iterations --timeout --agents-manifest --watch-manifest --nats-url --nats-port --temporal-host --temporal-namespace --task-queue --verbose --quiet --help --version" -- "$cur") )
    return
  fi

  if [[ $COMP_CWORD -eq 1 ]]; then
    COMPREPLY=( $(compgen -W "serve config completion" -- "$cur") )
  fi
}

complete -F _parley_complete parley
`

const zshCompletionScript = `#compdef parley
_parley_complete() {
  local -a flags
  flags=(
    '--config[Config file path]'
    '--port[HTTP API port]'
    '--token[Auth token for REST/WS]'
    '--data-dir[Directory for SQLite stores and snapshots]'
    '--name[Orchestrator name]'
    '--strategy[Speaker selection strategy]'
    '--max-iterations[Conversation turn limit]'
    '--timeout[Per-turn agent response timeout]'
    '--agents-manifest[Agent manifest YAML]'
    '--watch-manifest[Re-sync registry on manifest changes]'
    '--nats-url[External NATS server URL]'
    '--nats-port[Embedded NATS port]'
    '--temporal-host[Temporal frontend host:port]'
    '--temporal-namespace[Temporal namespace]'
    '--task-queue[Temporal task queue]'
    '--verbose[Enable debug logging]'
    '--quiet[Reduce logging to warnings]'
    '--help[Show help]'
    '--version[Print version and exit]'
  )

  case ${words[2]} in
    completion)
      _values 'shells' bash zsh
      return
      ;;
    config)
      _values 'subcommands' validate
      return
      ;;
  esac

  _arguments -s $flags '1:subcommand:(serve config completion)' '*::arg:->args'
}

_parley_complete "$@"
`
