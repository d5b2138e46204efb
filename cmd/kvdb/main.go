package main

import "github.com/ostafen/kvdb/cmd"

func main() {
	cmd.Execute()
}
