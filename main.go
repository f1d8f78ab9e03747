package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/markhalden/bitlet/client"
	"github.com/markhalden/bitlet/errs"
	"github.com/markhalden/bitlet/logging"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println(client.Help)
		return
	}

	if err := dispatch(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func dispatch(cmd string, args []string) error {
	ctx := context.Background()
	log := logging.Default()

	switch cmd {
	case "help":
		fmt.Println(client.Help)
		return nil

	case "decode":
		if len(args) != 1 {
			return usageErr("decode <bencoded>")
		}
		out, err := client.Decode(args[0])
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil

	case "info":
		if len(args) != 1 {
			return usageErr("info <file>")
		}
		out, err := client.Info(args[0])
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil

	case "peers":
		if len(args) != 1 {
			return usageErr("peers <file>")
		}
		out, err := client.Peers(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil

	case "handshake":
		if len(args) != 2 {
			return usageErr("handshake <file> <ip:port>")
		}
		out, err := client.Handshake(ctx, args[0], args[1], log)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil

	case "download_piece":
		fs := flag.NewFlagSet("download_piece", flag.ContinueOnError)
		out := fs.String("o", "", "output file")
		if err := fs.Parse(args); err != nil {
			return usageErr("download_piece -o <out> <file> <index>")
		}
		rest := fs.Args()
		if *out == "" || len(rest) != 2 {
			return usageErr("download_piece -o <out> <file> <index>")
		}
		index, err := strconv.Atoi(rest[1])
		if err != nil {
			return usageErr("piece index must be an integer")
		}
		return client.DownloadPiece(ctx, rest[0], *out, index, log)

	case "download":
		fs := flag.NewFlagSet("download", flag.ContinueOnError)
		out := fs.String("o", "", "output file, or \"default\" for info.name")
		workers := fs.Int("workers", 1, "number of concurrent peer sessions")
		if err := fs.Parse(args); err != nil {
			return usageErr("download -o <out> <file> [-workers N]")
		}
		rest := fs.Args()
		if *out == "" || len(rest) != 1 {
			return usageErr("download -o <out> <file> [-workers N]")
		}
		return client.DownloadFile(ctx, rest[0], *out, *workers, log)

	default:
		return usageErr(fmt.Sprintf("unknown command %q", cmd))
	}
}

func usageErr(msg string) error {
	return fmt.Errorf("%w: %s", errs.ErrUsage, msg)
}
