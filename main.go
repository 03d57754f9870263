package main

import "github.com/tcassar-diss/rawbpf/cmd"

func main() {
	cmd.Execute()
}
