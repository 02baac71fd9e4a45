package main

import (
	"github.com/snapmirror/snapmirror/cmd"
	"github.com/snapmirror/snapmirror/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}
