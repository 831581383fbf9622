// cmd/put.go

package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"ChunkFS/pkg/blob"
	"ChunkFS/pkg/utils"
)

func put(ctx *cli.Context) error {
	setLoggerLevel(ctx)
	if ctx.Args().Len() < 3 {
		return fmt.Errorf("STORE-URL, SRC and CONTAINER/KEY are needed")
	}
	bs, s := openVolume(ctx)
	defer s.Close()

	src := ctx.Args().Get(1)
	container, key := splitTarget(ctx.Args().Get(2))
	if key == "" {
		key = src
	}
	data, err := os.ReadFile(src)
	if err != nil {
		logger.Fatalf("read %s: %s", src, err)
	}
	if !bs.ContainerExists(container) {
		if err = bs.CreateContainer(container, blob.AccessPrivate); err != nil {
			logger.Fatalf("create container %s: %s", container, err)
		}
	}

	progress, bar := utils.NewProgressBar("uploading: ", int64(len(data)), ctx.Bool("quiet"))
	etag, err := bs.PutObject(container, key, data, &blob.PutOptions{
		ContentType: ctx.String("content-type"),
	})
	if err != nil {
		logger.Fatalf("put %s/%s: %s", container, key, err)
	}
	bar.SetCurrent(int64(len(data)))
	progress.Wait()
	logger.Infof("Uploaded %s to %s/%s (etag %s)", src, container, key, etag)
	return nil
}

func putFlags() *cli.Command {
	return &cli.Command{
		Name:      "put",
		Usage:     "upload a file as an object",
		ArgsUsage: "STORE-URL SRC CONTAINER/KEY",
		Action:    put,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "content-type",
				Usage: "content type stored with the object",
			},
			&cli.Int64Flag{
				Name:  "upload-limit",
				Value: 0,
				Usage: "bandwidth limit for upload in Mbps",
			},
		},
	}
}
