// Command pmcopilot walks a product idea through a fixed discovery pipeline
// and asks an analysis service for feedback on each step.
package main

import "pmcopilot/internal/cli"

func main() {
	cli.Execute()
}
