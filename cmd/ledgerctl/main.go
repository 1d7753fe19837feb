package main

import "github.com/corebank/ledger/cmd/ledgerctl/commands"

func main() {
	commands.Execute()
}
