// tern is a seed-and-extend short-read genome aligner
package main

import "github.com/ternlab/tern/cmd"

func main() {
	cmd.Execute()
}
