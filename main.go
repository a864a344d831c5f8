// main is the entry point for the covloupe CLI.
package main

import (
	"github.com/keithrbennett/covloupe/cmd"
	"github.com/keithrbennett/covloupe/internal/contract"
	"github.com/keithrbennett/covloupe/internal/iocache"
)

func main() {
	defer cmd.Cleanup()
	cmd.SetHistoryManager(iocache.Manager)
	if err := cmd.Execute(); err != nil {
		cmd.Cleanup()
		contract.LogFatal("Command failed", err)
	}
}
