package main

import "github.com/tendant/attendance-gate/cmd/attendance/cmd"

func main() {
	cmd.Execute()
}
