package main

import (
	cmd "github.com/kerbaras/novelbind/cmd/novelbind"
)

func main() {
	cmd.Execute()
}
