// The main package for the jobpipeline executable.
package main

import (
	"github.com/kyryl-lebedin/market-analysis/cmd"
)

func main() {
	cmd.Execute()
}
