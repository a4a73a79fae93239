/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package main

import "github.com/hallpass-app/hallpass/cmd"

func main() {
	cmd.Execute()
}
