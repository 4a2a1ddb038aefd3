// Command codetrek is a terminal coding tutor.
package main

import "github.com/codetrek/codetrek/internal/cli"

func main() {
	cli.Execute()
}
