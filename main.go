// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/slnpack/slnpack/cmd/slnpack"

func main() {
	cmd.Execute()
}
