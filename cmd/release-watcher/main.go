package main

import "github.com/oshokin/release-watcher/cmd/release-watcher/cmd"

func main() {
	cmd.Execute()
}
