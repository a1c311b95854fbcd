//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the testbed, CONFIG points it at a TOML config file.
func (Run) Engine() error {
	fmt.Println("Run engine...")
	args := []string{"run", "main.go"}
	if config := getEnv("CONFIG", ""); config != "" {
		args = append(args, "-config", config)
	}
	if _, err := executeCmd("go", withArgs(args...), withStream()); err != nil {
		return err
	}
	return nil
}
