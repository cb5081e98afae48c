//go:build mage

package main

import (
	"github.com/cockroachdb/errors"
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// debugTag enables the panicking validation in internal/utils
const debugTag = "debug_hearth"

type Test mg.Namespace

// Runs every test with the race detector.
func (Test) Unit() error {
	return goCmd("test", "-race", "./...")
}

// Runs every test with validation failures turned into panics.
func (Test) Debug() error {
	return goCmd("test", "-tags", debugTag, "./...")
}

// Runs both test configurations.
func (Test) All() {
	mg.SerialDeps(Test.Unit, Test.Debug)
}

// Runs go vet in both build configurations.
func Vet() error {
	err := goCmd("vet", "./...")
	if err != nil {
		return err
	}

	return goCmd("vet", "-tags", debugTag, "./...")
}

// Regenerates the gomock mocks.
func Generate() error {
	return goCmd("generate", "./...")
}

func goCmd(args ...string) error {
	err := sh.RunV(mg.GoCmd(), args...)
	if err != nil {
		return errors.Wrapf(err, "go %s failed", args[0])
	}
	return nil
}
