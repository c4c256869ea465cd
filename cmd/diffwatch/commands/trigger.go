package commands

import (
	"fmt"
	"io"
	"os"

	"git.home.luguber.info/inful/diffwatch/internal/source/pgsource"
)

// TriggerCmd implements the 'trigger' command.
type TriggerCmd struct {
	Table   string `help:"Update table name, overriding source.postgres.table"`
	Channel string `help:"NOTIFY channel, overriding source.postgres.channel"`
}

func (t *TriggerCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadOrDefault(root.Config)
	if err != nil {
		return err
	}
	table, channel := cfg.Source.Postgres.Table, cfg.Source.Postgres.Channel
	if t.Table != "" {
		table = t.Table
	}
	if t.Channel != "" {
		channel = t.Channel
	}
	return RunTrigger(table, channel, os.Stdout)
}

// RunTrigger writes the SQL that installs the insert trigger.
func RunTrigger(table, channel string, w io.Writer) error {
	_, err := fmt.Fprint(w, pgsource.TriggerSQL(table, channel))
	return err
}
