// Command eltorchestrator runs the ELT job orchestrator: its CLI wraps
// the scheduler, worker pool, migrations, and job/run inspection commands
// defined under cmd/.
package main

import (
	"os"

	"github.com/nextlevelbuilder/eltorchestrator/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
