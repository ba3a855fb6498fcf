// Sizeimpact reports the size impact of a change on build output files.
package main

import "github.com/albertocavalcante/sizeimpact/cmd/sizeimpact/internal/cli"

func main() {
	cli.Execute()
}
