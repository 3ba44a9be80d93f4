package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

func galleryMain(ctx context.Context, args *CliArgs, out io.Writer) error {
	catalog, err := openCatalog(args)
	if err != nil {
		return err
	}
	defer catalog.Close()

	entries, err := catalog.Recent(ctx, args.Limit)
	if err != nil {
		return err
	}

	for _, e := range entries {
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\n",
			e.SavedAt.Format(time.DateTime),
			e.Path,
			strings.Join(e.Labels, ", "),
			e.Location,
		)
	}
	return nil
}
