package main

import (
	"github.com/sidkik/bak/cmd"
	"github.com/sidkik/bak/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}
