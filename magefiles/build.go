//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/magefile/mage/target"
)

const shaderDir = "assets/shaders"

type Build mg.Namespace

// Compiles every GLSL stage under assets/shaders to SPIR-V with glslc. Stages
// whose .spv is newer than the source are skipped.
func (Build) Shaders() error {
	sources, err := shaderSources()
	if err != nil {
		return err
	}
	for _, src := range sources {
		out := src + ".spv"
		rebuild, err := target.Path(out, src)
		if err != nil {
			return err
		}
		if !rebuild {
			continue
		}
		if _, err := run(true, "glslc", "--target-env=vulkan1.0", "-O", src, "-o", out); err != nil {
			return err
		}
	}
	return nil
}

// Builds the testbed binary into bin/.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	return sh.RunV("go", "build", "-o", filepath.Join("bin", "lumen"), ".")
}

// Runs the unit tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

func shaderSources() ([]string, error) {
	entries, err := os.ReadDir(shaderDir)
	if err != nil {
		return nil, err
	}
	var sources []string
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".vert", ".frag":
			sources = append(sources, filepath.Join(shaderDir, e.Name()))
		}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no shader sources in %s", shaderDir)
	}
	if mg.Verbose() {
		fmt.Println("shaders:", strings.Join(sources, " "))
	}
	return sources, nil
}
