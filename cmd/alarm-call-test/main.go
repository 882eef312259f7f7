package main

import (
	"github.com/oshokin/alarm-dialer/cmd/alarm-call-test/cmd"
)

func main() {
	cmd.Execute()
}
