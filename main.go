package main

import "github.com/Manu343726/pipetrace/cmd"

func main() {
	cmd.Execute()
}
