// cmd/get.go

package main

import (
	"fmt"
	"os"
	"path"

	"github.com/urfave/cli/v2"

	"ChunkFS/pkg/utils"
)

func get(ctx *cli.Context) error {
	setLoggerLevel(ctx)
	if ctx.Args().Len() < 2 {
		return fmt.Errorf("STORE-URL and CONTAINER/KEY are needed")
	}
	bs, s := openVolume(ctx)
	defer s.Close()

	container, key := splitTarget(ctx.Args().Get(1))
	dst := ctx.Args().Get(2)
	if dst == "" {
		dst = path.Base(key)
	}

	obj, err := bs.GetObject(container, key)
	if err != nil {
		logger.Fatalf("get %s/%s: %s", container, key, err)
	}
	if obj.Dir {
		logger.Fatalf("%s/%s is a directory blob", container, key)
	}

	progress, bar := utils.NewProgressBar("downloading: ", obj.Size, ctx.Bool("quiet"))
	if err = os.WriteFile(dst, obj.Data, 0644); err != nil {
		logger.Fatalf("write %s: %s", dst, err)
	}
	bar.SetCurrent(obj.Size)
	progress.Wait()
	logger.Infof("Downloaded %s/%s to %s (%d bytes)", container, key, dst, obj.Size)
	return nil
}

func getFlags() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "download an object to a file",
		ArgsUsage: "STORE-URL CONTAINER/KEY [DST]",
		Action:    get,
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:  "download-limit",
				Value: 0,
				Usage: "bandwidth limit for download in Mbps",
			},
		},
	}
}
