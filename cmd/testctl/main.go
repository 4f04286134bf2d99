package main

import (
	"os"

	"nnevald/internal/testctl"
)

func main() {
	os.Exit(testctl.Main())
}
