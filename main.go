package main

import "github.com/clubops/platform/cmd"

func main() {
	cmd.Execute()
}
