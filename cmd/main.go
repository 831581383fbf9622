// cmd/main.go

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"ChunkFS/pkg/blob"
	"ChunkFS/pkg/store"
	"ChunkFS/pkg/utils"
	"ChunkFS/pkg/version"
)

var logger = utils.GetLogger("chunkfs")

func main() {
	cli.VersionFlag = &cli.BoolFlag{
		Name: "version", Aliases: []string{"V"},
		Usage: "print only the version",
	}
	app := &cli.App{
		Name:                 "chunkfs",
		Usage:                "chunked blob storage",
		Version:              version.Version(),
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"debug", "v"},
				Usage:   "enable debug log",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "only warning and errors",
			},
		},
		Commands: []*cli.Command{
			formatFlags(),
			statusFlags(),
			putFlags(),
			getFlags(),
			rmFlags(),
			lsFlags(),
			accessFlags(),
		},
	}
	err := app.Run(os.Args)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func setLoggerLevel(c *cli.Context) {
	if c.Bool("verbose") {
		utils.SetLogLevel(logrus.DebugLevel)
	} else if c.Bool("quiet") {
		utils.SetLogLevel(logrus.WarnLevel)
	}
}

// openVolume connects to the chunk store named by the first argument and
// loads the format the volume was created with.
func openVolume(c *cli.Context) (*blob.Store, store.Store) {
	if c.Args().Len() < 1 {
		logger.Fatalf("STORE-URL is needed")
	}
	s, err := store.Create(c.Args().Get(0))
	if err != nil {
		logger.Fatalf("chunk store: %s", err)
	}
	format, err := s.Load()
	if err != nil {
		logger.Fatalf("load setting: %s", err)
	}
	if up, down := c.Int64("upload-limit"), c.Int64("download-limit"); up > 0 || down > 0 {
		s = store.WithLimits(s, up*1e6/8, down*1e6/8)
	}
	bs, err := blob.NewStore(format, s)
	if err != nil {
		logger.Fatalf("open volume %s: %s", format.Name, err)
	}
	return bs, s
}

// splitTarget breaks CONTAINER or CONTAINER/KEY into its parts.
func splitTarget(t string) (string, string) {
	parts := strings.SplitN(t, "/", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
