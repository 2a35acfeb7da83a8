package main

import "github.com/adgate/adgate/cmd"

func main() {
	cmd.Execute()
}
