package main

import (
	"github.com/axellelanca/clicktrail/cmd"
	_ "github.com/axellelanca/clicktrail/cmd/cli"
	_ "github.com/axellelanca/clicktrail/cmd/server"
)

func main() {
	cmd.Execute()
}
