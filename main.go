package main

import "github.com/iksnae/ptsp-chat/cmd"

func main() {
	cmd.Execute()
}
