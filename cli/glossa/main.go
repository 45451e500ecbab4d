package main

import (
	"os"

	glossacmder "github.com/papercomputeco/glossa/cmd/glossa"
)

func main() {
	cmd := glossacmder.NewGlossaCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
