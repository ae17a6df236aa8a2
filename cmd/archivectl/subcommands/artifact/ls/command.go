package ls

import (
	"context"
	"encoding/json"
	"log"

	krst "github.com/opst/fieldarchive/cmd/archivectl/rest"
	"github.com/opst/fieldarchive/cmd/archivectl/subcommands/common"
	kdb "github.com/opst/fieldarchive/pkg/db"
	"github.com/opst/fieldarchive/pkg/domain"
	"github.com/youta-t/flarc"
)

type Flag struct {
	State      string `flag:"state" alias:"s" metavar:"pending|uploading|archived|placeholder" help:"Find Artifacts in this state."`
	Project    string `flag:"project" alias:"p" help:"Find Artifacts of this project."`
	DeviceType string `flag:"device-type" alias:"d" help:"Find Artifacts of this device type."`
	Endpoint   string `flag:"endpoint" alias:"e" help:"Find Artifacts going to (or placed on) this endpoint."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Find Artifacts. Found Artifacts are printed as JSON array.",
		Flag{},
		flarc.Args{},
		common.NewTask(Task),
		flarc.WithDescription(`
Find Artifacts matching all given flags. Without flags, all Artifacts are found.

Artifacts are ordered by their creation time.
`),
	)
}

func Task(
	ctx context.Context,
	logger *log.Logger,
	client krst.ArchiveClient,
	cl flarc.Commandline[Flag],
	_ []any,
) error {
	flags := cl.Flags()
	query := kdb.ArtifactQuery{
		Project:    flags.Project,
		DeviceType: flags.DeviceType,
		Endpoint:   flags.Endpoint,
	}
	if flags.State != "" {
		state, err := domain.AsArtifactState(flags.State)
		if err != nil {
			return flarc.ErrUsage
		}
		query.State = state
	}

	found, err := client.FindArtifacts(ctx, query)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cl.Stdout())
	enc.SetIndent("", "    ")
	if err := enc.Encode(found); err != nil {
		return err
	}
	logger.Printf("%d artifacts found", len(found))
	return nil
}
