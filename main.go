package main

import "github.com/imedia765/memberhub/cmd"

func main() {
	cmd.Execute()
}
