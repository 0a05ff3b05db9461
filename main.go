// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/stagehand-cli/stagehand/cmd/stagehand"

func main() {
	cmd.Execute()
}
