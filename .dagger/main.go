// Glossa CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
package main

import (
	"context"

	"dagger/glossa/internal/dagger"
)

// Glossa is the main module for the glossa CI/CD pipeline
type Glossa struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Glossa CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", "build", "tmp", "uploads", "translated_output"]
	source *dagger.Directory,
) *Glossa {
	return &Glossa{
		Source: source,
	}
}

// goContainer returns an Alpine-based Go container with the project source
// mounted. glossa is pure Go, so CGO stays off.
//
// It is the shared foundation for tests and builds.
func (g *Glossa) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-alpine").
		WithEnvVariable("CGO_ENABLED", "0").
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", g.Source)
}

// Test runs the glossa unit tests via "go test"
func (g *Glossa) Test(ctx context.Context) (string, error) {
	return g.goContainer().
		WithExec([]string{"go", "test", "-v", "./..."}).
		Stdout(ctx)
}
