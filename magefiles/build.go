//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Builds the testbed binary into bin/.
func (Build) Engine() error {
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/anima-gfx", "."), withStream()); err != nil {
		return err
	}
	return nil
}

// Builds the Vulkan backend, it needs the Vulkan headers to be installed.
func (Build) Vulkan() error {
	_, err := executeCmd("go", withArgs("build", "./..."), withDir("engine/gfx/vulkan"), withStream())
	return err
}
