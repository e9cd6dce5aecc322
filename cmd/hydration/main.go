package main

import "github.com/tidepool-org/hydration/cmd/hydration/command"

func main() {
	command.Execute()
}
