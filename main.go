package main

import "github.com/KaramelBytes/munidata-cli/cmd"

func main() {
	cmd.Execute()
}
