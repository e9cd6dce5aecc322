package main

import (
	"github.com/tidepool-org/hydration/api"
)

func main() {
	api.MainLoop()
}
