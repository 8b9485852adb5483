package main

import (
	"github.com/hpcbuild/cp2kbuild/cmd/cp2kbuild/internal"
)

func main() {
	internal.Execute()
}
