package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path"

	"github.com/opst/fieldarchive/cmd/archivectl/subcommands/artifact"
	"github.com/opst/fieldarchive/cmd/archivectl/subcommands/common"
	"github.com/opst/fieldarchive/pkg/utils/try"
	"github.com/youta-t/flarc"
)

func main() {
	name := path.Base(os.Args[0])
	logger := log.Default()
	logger.SetPrefix(fmt.Sprintf("[%s] ", name))

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill,
	)
	defer cancel()

	cf := common.Flags{
		Api:   os.Getenv("FIELDARCHIVE_API"),
		Token: os.Getenv("FIELDARCHIVE_TOKEN"),
	}
	artifact := try.To(artifact.New()).OrFatal(logger)

	cmd := try.To(
		flarc.NewCommandGroup(
			"fieldarchive operator commandline interface",
			cf,
			flarc.WithSubcommand("artifact", artifact),
		),
	).OrFatal(logger)

	os.Exit(flarc.Run(ctx, cmd, flarc.WithHelp(true)))
}
