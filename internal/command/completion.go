// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/shellcache/internal/meta"
)

const bashCompletionScript = `# bash completion for shellcache
# Fallback if bash-completion is not installed
if ! declare -F _get_comp_words_by_ref >/dev/null 2>&1; then
  _get_comp_words_by_ref() {
    cur=${COMP_WORDS[COMP_CWORD]}
    prev=${COMP_WORDS[COMP_CWORD-1]}
  }
fi

_shellcache()
{
    local cur prev cmd
    COMPREPLY=()
    _get_comp_words_by_ref -n : cur prev

    if [[ ${COMP_CWORD} -eq 1 ]]; then
        COMPREPLY=( $(compgen -W "activate install manifest message plan prefetch serve status completion --help --version" -- "$cur") )
        return 0
    fi

    cmd=${COMP_WORDS[1]}
    local store="--origin --bundle -b --store --cache-dir --bucket --prefix --region --profile --endpoint --concurrency --partition-prefix"
    local common="--color -c --filter -f --output -o --sort -s --titles -t"

    case "$prev" in
        --output|-o)
            COMPREPLY=( $(compgen -W "text json yaml" -- "$cur") )
            return 0
            ;;
        --store)
            COMPREPLY=( $(compgen -W "memory disk s3" -- "$cur") )
            return 0
            ;;
        --bundle|-b|--out|-O)
            COMPREPLY=( $(compgen -f -- "$cur") )
            return 0
            ;;
        --cache-dir)
            COMPREPLY=( $(compgen -o dirnames -- "$cur") )
            return 0
            ;;
    esac

    case "$cmd" in
        install|activate|prefetch)
            local opts="$store"
            ;;
        plan)
            local opts="$store $common"
            ;;
        status)
            local opts="$store $common --partition -p"
            ;;
        serve)
            local opts="$store --listen -l"
            ;;
        message)
            local opts="--server skipWaiting downloadOffline"
            ;;
        manifest)
            if [[ ${COMP_CWORD} -eq 2 ]]; then
                COMPREPLY=( $(compgen -W "build" -- "$cur") )
                return 0
            fi
            if [[ "$cur" != -* ]]; then
                COMPREPLY=( $(compgen -o dirnames -- "$cur") )
                return 0
            fi
            local opts="--core --skip --out -O --label"
            ;;
        completion)
            COMPREPLY=( $(compgen -W "bash zsh" -- "$cur") )
            return 0
            ;;
        *)
            local opts=""
            ;;
    esac

    COMPREPLY=( $(compgen -W "$opts" -- "$cur") )
    return 0
}

complete -F _shellcache shellcache
`

const zshCompletionScript = `#compdef shellcache

_shellcache() {
  local -a cmds
  cmds=(
    'activate:reconcile cached content and promote staged resources'
    'install:stage the core resources'
    'manifest:work with resource manifests'
    'message:post a control message to a running server'
    'plan:show what the next activation would evict, keep and stage'
    'prefetch:download every resource for offline use'
    'serve:front the origin with the offline cache'
    'status:list cache partitions and their entries'
    'completion:generate shell completion script'
  )

  local -a store
  store=(
  '--origin[origin the app is served from]:url'
  '(-b --bundle)'{-b,--bundle}'[bundle file]:file:_files'
  '--store[partition store]:store:(memory disk s3)'
  '--cache-dir[disk store directory]:dir:_directories'
  '--bucket[s3 store bucket]:bucket'
  '--prefix[s3 store key prefix]:prefix'
  '--region[s3 store region]:region'
  '--profile[AWS shared config profile]:profile'
  '--endpoint[S3-compatible endpoint URL]:url'
  '--concurrency[parallel fetches]:n'
  '--partition-prefix[partition name prefix]:prefix'
  )

  local -a common
  common=(
  '(-c --color)'{-c,--color}'[enable colored text]'
  '(-f --filter)'{-f,--filter}'[filters to apply]:filters'
  '(-o --output)'{-o,--output}'[output format]:format:(text json yaml)'
  '(-s --sort)'{-s,--sort}'[sort attributes]:attrs'
  '(-t --titles)'{-t,--titles}'[show titles]'
  )

  if (( CURRENT == 2 )); then
    _describe -t commands 'shellcache commands' cmds
    return
  fi

  local curcontext="$curcontext" state line
  case $words[2] in
    install|activate|prefetch)
      _arguments -C $store
      ;;
    plan)
      _arguments -C $store $common
      ;;
    status)
      _arguments -C $store $common \
        '*'{-p,--partition}'[only list this partition]:partition'
      ;;
    serve)
      _arguments -C $store \
        '(-l --listen)'{-l,--listen}'[address to listen on]:addr'
      ;;
    message)
      _arguments -C \
        '--server[base URL of the running server]:url' \
        '1:message:(skipWaiting downloadOffline)'
      ;;
    manifest)
      _arguments -C \
        '*--core[resource fetched at install]:key' \
        '*--skip[glob of paths to leave out]:glob' \
        '(-O --out)'{-O,--out}'[bundle file to write]:file:_files' \
        '--label[version label]:label' \
        '1:subcommand:(build)' \
        '2:directory:_directories'
      ;;
    completion)
      _arguments '1: :((bash zsh))'
      ;;
  esac
}

# If this file is sourced directly (not autoloaded via fpath), ensure compsys is initialized and register the completion
if ! typeset -f compdef >/dev/null 2>&1; then
  autoload -Uz compinit && compinit -i
fi
compdef _shellcache shellcache
`

func CompletionCommandAction(ctx context.Context, cmd *cli.Command) error {
	out := GetMeta(cmd).Out()
	shell := cmd.Args().First()
	if shell == "" {
		// Try to detect from SHELL
		shell = os.Getenv("SHELL")
	}
	switch {
	case strings.HasSuffix(shell, "zsh"):
		fmt.Fprint(out, zshCompletionScript)
	case strings.HasSuffix(shell, "bash"):
		fmt.Fprint(out, bashCompletionScript)
	default:
		fmt.Fprintln(os.Stderr, "usage: shellcache completion [bash|zsh]")
	}
	return nil
}

func CompletionCommandBuilder(meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "completion",
		Usage:     "generate shell completion script",
		UsageText: "shellcache completion [bash|zsh]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Action: CompletionCommandAction,
	}
}
