package main

import (
	"github.com/oshokin/alarm-dialer/cmd/alarm-monitor/cmd"
)

func main() {
	cmd.Execute()
}
