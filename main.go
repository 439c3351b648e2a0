package main

import "github.com/pgsentry/pgsentry/cmd"

func main() {
	cmd.Execute()
}
