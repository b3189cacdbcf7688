package main

import "github.com/q-controller/imagedrop/src/imagedropd/cmd"

func main() {
	cmd.Execute()
}
