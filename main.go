package main

import "github.com/nextlevelbuilder/voxtask/cmd"

func main() {
	cmd.Execute()
}
