package main

import "github.com/JeanGrijp/go-csrfguard/cmd/csrfdemo/cmd"

func main() {
	cmd.Execute()
}
