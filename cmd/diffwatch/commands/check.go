package commands

import (
	"fmt"
	"io"
	"os"

	ferrors "git.home.luguber.info/inful/diffwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/diffwatch/internal/update"
	"git.home.luguber.info/inful/diffwatch/internal/updatelog"
)

// CheckCmd implements the 'check' command.
type CheckCmd struct {
	File string `arg:"" help:"JSON array of update records" type:"existingfile"`
}

func (c *CheckCmd) Run(_ *Global, _ *CLI) error {
	return RunCheck(c.File, os.Stdout)
}

// RunCheck decodes every record in path and reports the ones a session would
// reject. It fails when any record is rejected.
func RunCheck(path string, w io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryValidation, "read update records").
			WithContext("path", path).
			Build()
	}
	accepted, rejected, err := update.DecodeBatch(data)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(w, "%d accepted, %d rejected\n", len(accepted), len(rejected))
	for _, r := range rejected {
		_, _ = fmt.Fprintf(w, "  record %d: %v\n", r.Index, r.Err)
	}
	if dups := updatelog.DuplicateIDs(accepted); len(dups) > 0 {
		_, _ = fmt.Fprintf(w, "  duplicate ids (kept, replays are tolerated): %v\n", dups)
	}

	if len(rejected) > 0 {
		return ferrors.ValidationError("update records rejected").
			WithContext("path", path).
			WithContext("rejected", len(rejected)).
			Build()
	}
	return nil
}
