package main

import "msgboard/cmd/server"

func main() {
	server.Run()
}
