// Command boardctl operates a scheduling board held in the configured snapshot
// store: it checks consistency, applies operation scripts, toggles date locks,
// and archives or restores snapshots.
package main

import (
	"fmt"
	"io"
	"os"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

const usageText = `usage: boardctl <command> [flags]

commands:
  check    hydrate the board and verify its indices
  apply    run an operation script against the board
  locks    toggle or list capacity-locked dates
  export   archive the current snapshot
  restore  replace the board with the newest archived snapshot

run "boardctl <command> -h" for command flags.
`

func cli(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usageText)
		return 2
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "check":
		return runCheck(rest, stdout, stderr)
	case "apply":
		return runApply(rest, stdout, stderr)
	case "locks":
		return runLocks(rest, stdout, stderr)
	case "export":
		return runExport(rest, stdout, stderr)
	case "restore":
		return runRestore(rest, stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usageText)
		return 0
	default:
		fmt.Fprintf(stderr, "boardctl: unknown command %q\n", cmd)
		fmt.Fprint(stderr, usageText)
		return 2
	}
}
