package main

import "github.com/cloudops-tools/quota-notifier/internal/cli"

func main() {
	cli.Execute()
}
