package main

import "github.com/frahmantamala/survey-management/cmd"

func main() {
	cmd.Execute()
}
