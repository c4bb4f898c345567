package main

import (
	"github.com/robotalks/tank.go/pkg/cli/sh"
	"github.com/robotalks/tank.go/pkg/env"

	_ "github.com/robotalks/tank.go/pkg/cli/cmds/tank"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
