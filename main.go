package main

import "github.com/frahmantamala/pharmacy-management/cmd"

func main() {
	cmd.Execute()
}
