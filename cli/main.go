package main

import "southwinds.dev/hwcrypt/cli/cmd"

func main() {
	cmd.Execute()
}
