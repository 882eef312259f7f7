package main

import (
	"github.com/oshokin/alarm-dialer/cmd/alarm-sender/cmd"
)

func main() {
	cmd.Execute()
}
