package rm

import (
	"context"
	"log"

	krst "github.com/opst/fieldarchive/cmd/archivectl/rest"
	"github.com/opst/fieldarchive/cmd/archivectl/subcommands/common"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Force bool `flag:"force" alias:"f" help:"Delete the remote copy and member files too. Without this, an archived Artifact is kept as a placeholder."`
}

const ARG_NAME = "ARTIFACT_NAME"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Delete an Artifact.",
		Flag{},
		flarc.Args{
			{
				Name: ARG_NAME, Required: true, Repeatable: false,
				Help: "Name of the Artifact to be deleted.",
			},
		},
		common.NewTask(Task),
		flarc.WithDescription(`
Artifacts having member files with "do not remove" hold are not deleted.

Not archived Artifacts are discarded, and their member files are packaged again later.
Archived Artifacts become placeholders: only their metadata is kept.

With --force, the remote copy, member files and all records are deleted.
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
	name := cl.Args()[ARG_NAME][0]
	if err := client.DeleteArtifact(ctx, name, cl.Flags().Force); err != nil {
		return err
	}
	logger.Printf("deleted Artifact: %s", name)
	return nil
}
