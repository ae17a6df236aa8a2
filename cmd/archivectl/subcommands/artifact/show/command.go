package show

import (
	"context"
	"encoding/json"
	"log"

	krst "github.com/opst/fieldarchive/cmd/archivectl/rest"
	"github.com/opst/fieldarchive/cmd/archivectl/subcommands/common"
	"github.com/youta-t/flarc"
)

const ARG_NAME = "ARTIFACT_NAME"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Show an Artifact with its member files, as JSON.",
		struct{}{},
		flarc.Args{
			{
				Name: ARG_NAME, Required: true, Repeatable: false,
				Help: "Name of the Artifact to be shown.",
			},
		},
		common.NewTask(Task),
	)
}

func Task(
	ctx context.Context,
	_ *log.Logger,
	client krst.ArchiveClient,
	cl flarc.Commandline[struct{}],
	_ []any,
) error {
	name := cl.Args()[ARG_NAME][0]

	detail, err := client.GetArtifact(ctx, name)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cl.Stdout())
	enc.SetIndent("", "    ")
	return enc.Encode(detail)
}
