package main

import "github.com/gnolang/summarizer/cmd"

func main() {
	cmd.Main()
}
