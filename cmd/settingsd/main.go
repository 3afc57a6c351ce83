package main

import (
	"github.com/cormoran/zmk-module-settings-rpc/src/cmd/settingsd/command"
)

func main() {
	command.Execute()
}
