package main

import "github.com/Official-Krish/ai-trading-zerodha/internal/commands"

func main() {
	commands.Execute()
}
