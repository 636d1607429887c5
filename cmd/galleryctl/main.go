package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/rmehra06/galleryctl/internal/api"
	"github.com/rmehra06/galleryctl/internal/config"
	"github.com/rmehra06/galleryctl/internal/logging"
	"github.com/rmehra06/galleryctl/internal/manager"
	"github.com/rmehra06/galleryctl/internal/models"
)

func main() {
	logging.Setup(config.Envs.LogLevel)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	if err := run(os.Args[1], os.Args[2:]); err != nil {
		log.Debug().Err(err).Msg("command failed")
		fmt.Fprintln(os.Stderr, "Error:", manager.DisplayMessage(err))
		os.Exit(1)
	}
}

func run(cmd string, args []string) error {
	ctx := context.Background()

	switch cmd {
	case "list":
		fs := flag.NewFlagSet("list", flag.ExitOnError)
		project := projectFlag(fs)
		parseArgs(fs, args)
		m, err := newManager(ctx, *project)
		if err != nil {
			return err
		}
		printSet(m)
		return nil

	case "upload":
		fs := flag.NewFlagSet("upload", flag.ExitOnError)
		project := projectFlag(fs)
		parseArgs(fs, args)
		if fs.NArg() == 0 {
			fatalf("upload: at least one file is required")
		}

		files := make([]models.FileUpload, 0, fs.NArg())
		for _, name := range fs.Args() {
			f, err := os.Open(name)
			if err != nil {
				fatalf("upload: %v", err)
			}
			defer f.Close()
			files = append(files, models.FileUpload{Filename: filepath.Base(name), Content: f})
		}

		m, err := newManager(ctx, *project)
		if err != nil {
			return err
		}
		if err := m.Upload(ctx, files); err != nil {
			return err
		}
		printSet(m)
		return nil

	case "rm":
		fs := flag.NewFlagSet("rm", flag.ExitOnError)
		project := projectFlag(fs)
		identity := identityFlags(fs)
		parseArgs(fs, args)
		id, ok := identity()
		if !ok {
			fatalf("rm: one of -id, -path or -index is required")
		}

		m, err := newManager(ctx, *project)
		if err != nil {
			return err
		}
		if err := m.Delete(ctx, id); err != nil {
			return err
		}
		printSet(m)
		return nil

	case "reorder":
		fs := flag.NewFlagSet("reorder", flag.ExitOnError)
		project := projectFlag(fs)
		by := fs.String("by", "id", "how the keys address images: id, path or index")
		parseArgs(fs, args)
		if fs.NArg() == 0 {
			fatalf("reorder: the full desired sequence of keys is required")
		}

		order := make([]models.Identity, 0, fs.NArg())
		for _, key := range fs.Args() {
			order = append(order, parseIdentity(*by, key))
		}

		m, err := newManager(ctx, *project)
		if err != nil {
			return err
		}
		if err := m.Reorder(ctx, order); err != nil {
			return err
		}
		printSet(m)
		return nil

	case "feature":
		fs := flag.NewFlagSet("feature", flag.ExitOnError)
		project := projectFlag(fs)
		identity := identityFlags(fs)
		parseArgs(fs, args)
		id, ok := identity()
		if !ok {
			fatalf("feature: one of -id, -path or -index is required")
		}

		m, err := newManager(ctx, *project)
		if err != nil {
			return err
		}
		if err := m.SetFeatured(ctx, id); err != nil {
			return err
		}
		printSet(m)
		return nil

	case "extract":
		fs := flag.NewFlagSet("extract", flag.ExitOnError)
		project := projectFlag(fs)
		parseArgs(fs, args)
		m, err := newManager(ctx, *project)
		if err != nil {
			return err
		}
		msg, err := m.Extract(ctx)
		if err != nil {
			return err
		}
		fmt.Println(msg)
		printSet(m)
		return nil

	default:
		usage()
		os.Exit(2)
		return nil
	}
}

func newManager(ctx context.Context, projectID string) (*manager.Manager, error) {
	client, err := api.NewFromConfig(config.Envs)
	if err != nil {
		return nil, err
	}
	return manager.New(ctx, client, projectID)
}

func projectFlag(fs *flag.FlagSet) *string {
	return fs.String("project", "", "project id (required)")
}

func parseArgs(fs *flag.FlagSet, args []string) {
	_ = fs.Parse(args)
	if p := fs.Lookup("project"); p != nil && p.Value.String() == "" {
		fatalf("%s: -project is required", fs.Name())
	}
}

// identityFlags registers the three addressing flags and returns a resolver
// picking whichever one the user set.
func identityFlags(fs *flag.FlagSet) func() (models.Identity, bool) {
	id := fs.String("id", "", "image id")
	path := fs.String("path", "", "image path (legacy records)")
	index := fs.Int("index", -1, "image position")
	return func() (models.Identity, bool) {
		switch {
		case *id != "":
			return models.ByID(*id), true
		case *path != "":
			return models.ByPath(*path), true
		case *index >= 0:
			return models.ByIndex(*index), true
		}
		return models.Identity{}, false
	}
}

func parseIdentity(by, key string) models.Identity {
	switch by {
	case "path":
		return models.ByPath(key)
	case "index":
		n, err := strconv.Atoi(key)
		if err != nil {
			fatalf("reorder: %q is not a position", key)
		}
		return models.ByIndex(n)
	default:
		return models.ByID(key)
	}
}

func printSet(m *manager.Manager) {
	set := m.Set()
	if len(set.Items) == 0 {
		fmt.Println("no images")
		return
	}
	for _, it := range set.Items {
		marker := " "
		if it.IsFeatured {
			marker = "*"
		}
		fmt.Printf("%s %2d  %-12s %-24s %s\n",
			marker, it.OrderIndex, it.Identity(), it.Filename, m.DisplayURL(it))
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(2)
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: galleryctl <command> [flags]

Commands:
  list     -project ID                      show the project's image set
  upload   -project ID file...             upload images (max 20 per project)
  rm       -project ID -id|-path|-index    delete one image
  reorder  -project ID [-by id|path|index] key...   set the full display order
  feature  -project ID -id|-path|-index    mark the featured image
  extract  -project ID                     extract images from the project document

Configuration via environment (or .env): API_BASE_URL, API_TOKEN,
REQUEST_TIMEOUT, UPLOAD_TIMEOUT, LOG_LEVEL.`)
}
