package main

import "github.com/maxvaer/smugprobe/cmd"

func main() {
	cmd.Execute()
}
