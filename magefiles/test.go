//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs every package test with the race detector.
func (Test) All() error {
	if _, err := executeCmd("go", withArgs("test", "-race", "-count=1", "./engine/..."), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the vulkan backend tests against the fake driver only.
func (Test) Vulkan() error {
	if _, err := executeCmd("go", withArgs("test", "-v", "./engine/renderer/vulkan/..."), withStream()); err != nil {
		return err
	}
	return nil
}
