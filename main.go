package main

import "github.com/Alijeyrad/karsaz_backend/cmd"

func main() {
	cmd.Execute()
}
