package main

import (
	"github.com/sp1nlock/legwork/cmd"
)

func main() {
	cmd.Execute()
}
