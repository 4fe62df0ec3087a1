package main

import "github.com/example/visaslot/cmd"

func main() {
	cmd.Execute()
}
