package artifact

import (
	artifact_ls "github.com/opst/fieldarchive/cmd/archivectl/subcommands/artifact/ls"
	artifact_rm "github.com/opst/fieldarchive/cmd/archivectl/subcommands/artifact/rm"
	artifact_show "github.com/opst/fieldarchive/cmd/archivectl/subcommands/artifact/show"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	ls, err := artifact_ls.New()
	if err != nil {
		return nil, err
	}

	show, err := artifact_show.New()
	if err != nil {
		return nil, err
	}

	rm, err := artifact_rm.New()
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Manipulate Artifacts.",
		struct{}{},
		flarc.WithSubcommand("ls", ls),
		flarc.WithSubcommand("show", show),
		flarc.WithSubcommand("rm", rm),
	)
}
