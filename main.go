package main

import "github.com/KaramelBytes/sheetchat/cmd"

func main() {
	cmd.Execute()
}
