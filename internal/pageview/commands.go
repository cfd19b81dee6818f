package pageview

import (
	"fmt"

	"github.com/perfsight/rumbeacon/internal/eventlog"
)

// Command is one deferred call accumulated by the host before the engine
// was ready. The snippet pattern: calls are queued as tagged records and
// replayed exactly once, in original order, at initialization.
type Command struct {
	Name string
	Args []string
}

// ReplayCommands consumes the queue in FIFO order. Unknown commands are
// logged and skipped; nothing here can fail the caller.
func (c *Controller) ReplayCommands(queue []Command) {
	for _, cmd := range queue {
		c.log.Log(eventlog.CommandReplayed, cmd.Name)
		switch cmd.Name {
		case "init":
			c.Init()
		case "send":
			c.Send()
		case "mark":
			if len(cmd.Args) >= 1 {
				c.Mark(cmd.Args[0])
			}
		case "measure":
			switch len(cmd.Args) {
			case 1:
				c.Measure(cmd.Args[0], "", "")
			case 2:
				c.Measure(cmd.Args[0], cmd.Args[1], "")
			default:
				if len(cmd.Args) >= 3 {
					c.Measure(cmd.Args[0], cmd.Args[1], cmd.Args[2])
				}
			}
		case "addData":
			if len(cmd.Args) >= 2 {
				c.AddData(cmd.Args[0], cmd.Args[1])
			}
		case "label":
			if len(cmd.Args) >= 1 {
				c.SetLabel(cmd.Args[0])
			}
		default:
			c.log.Log(eventlog.DataUnavailable, fmt.Sprintf("unknown command %q", cmd.Name))
		}
	}
}
