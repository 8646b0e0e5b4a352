package main

import (
	"github.com/Brownie44l1/fer-stream/internal/commands"
)

func main() {
	commands.Execute()
}
