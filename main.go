package main

import "github.com/sahelii/bitespeed-identity-reconciliation/internal/cli"

func main() {
	cli.Execute()
}
