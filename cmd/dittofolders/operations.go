package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/dittofolders/pkg/folder"
	"github.com/marmos91/dittofolders/pkg/performer"
)

// call runs one operation against the service. Its result is printed.
type call func(ctx context.Context, svc *performer.Service, s *folder.Session, tree string, args []string) (any, error)

// operation describes a folder operation of the CLI.
type operation struct {
	// args is the number of positional arguments; -1 accepts one or more.
	args  int
	usage string

	// bind registers the command flags and returns the call using them.
	bind func(fs *flag.FlagSet) call
}

var operations = map[string]operation{
	"get": {args: 1, usage: "<id>", bind: func(*flag.FlagSet) call {
		return func(ctx context.Context, svc *performer.Service, s *folder.Session, tree string, args []string) (any, error) {
			f, err := svc.Get(ctx, s, tree, args[0])
			if err != nil {
				return nil, err
			}
			return newFolderView(f), nil
		}
	}},

	"list": {args: 1, usage: "<parent>", bind: func(fs *flag.FlagSet) call {
		all := fs.Bool("all", false, "Include unsubscribed folders")
		return func(ctx context.Context, svc *performer.Service, s *folder.Session, tree string, args []string) (any, error) {
			res, err := svc.List(ctx, s, tree, args[0], *all)
			if err != nil {
				return nil, err
			}
			return newListView(res.Folders, res.Warnings), nil
		}
	}},

	"path": {args: 1, usage: "<id>", bind: func(*flag.FlagSet) call {
		return func(ctx context.Context, svc *performer.Service, s *folder.Session, tree string, args []string) (any, error) {
			path, err := svc.Path(ctx, s, tree, args[0])
			if err != nil {
				return nil, err
			}
			return newListView(path, nil), nil
		}
	}},

	"create": {args: 2, usage: "<parent> <name>", bind: func(fs *flag.FlagSet) call {
		ct := fs.String("content-type", "", "Content type of the folder (default: storage default)")
		autoRename := fs.Bool("auto-rename", false, "Pick a free name instead of failing on duplicates")
		unsubscribed := fs.Bool("unsubscribed", false, "Create the folder unsubscribed")
		return func(ctx context.Context, svc *performer.Service, s *folder.Session, tree string, args []string) (any, error) {
			f := &folder.Folder{TreeID: tree, ParentID: args[0], Name: args[1], Subscribed: !*unsubscribed}
			if *ct != "" {
				parsed, err := folder.ParseContentType(*ct)
				if err != nil {
					return nil, err
				}
				f.ContentType = parsed
			}
			id, err := svc.Create(ctx, s, performer.CreateRequest{Folder: f, AutoRename: *autoRename})
			if err != nil {
				return nil, err
			}
			return map[string]string{"id": id}, nil
		}
	}},

	"rename": {args: 2, usage: "<id> <name>", bind: func(fs *flag.FlagSet) call {
		autoRename := fs.Bool("auto-rename", false, "Pick a free name instead of failing on duplicates")
		return func(ctx context.Context, svc *performer.Service, s *folder.Session, tree string, args []string) (any, error) {
			return nil, svc.Update(ctx, s, performer.UpdateRequest{
				Folder:     &folder.Folder{TreeID: tree, ID: args[0], Name: args[1]},
				AutoRename: *autoRename,
			})
		}
	}},

	"move": {args: 2, usage: "<id> <parent>", bind: func(fs *flag.FlagSet) call {
		autoRename := fs.Bool("auto-rename", false, "Pick a free name instead of failing on duplicates")
		name := fs.String("name", "", "New name for the moved folder")
		return func(ctx context.Context, svc *performer.Service, s *folder.Session, tree string, args []string) (any, error) {
			return nil, svc.Update(ctx, s, performer.UpdateRequest{
				Folder:     &folder.Folder{TreeID: tree, ID: args[0], ParentID: args[1], Name: *name},
				AutoRename: *autoRename,
			})
		}
	}},

	"subscribe": {args: 2, usage: "<id> <target-parent>", bind: func(fs *flag.FlagSet) call {
		target := fs.String("target-tree", folder.VirtualTreeID, "Tree receiving the subscription")
		return func(ctx context.Context, svc *performer.Service, s *folder.Session, tree string, args []string) (any, error) {
			return nil, svc.Subscribe(ctx, s, tree, args[0], *target, args[1])
		}
	}},

	"unsubscribe": {args: 1, usage: "<id>", bind: func(*flag.FlagSet) call {
		return func(ctx context.Context, svc *performer.Service, s *folder.Session, tree string, args []string) (any, error) {
			return nil, svc.Unsubscribe(ctx, s, tree, args[0])
		}
	}},

	"delete": {args: 1, usage: "<id>", bind: func(fs *flag.FlagSet) call {
		since := fs.String("if-unmodified-since", "", "Fail when the folder changed after this RFC 3339 time")
		return func(ctx context.Context, svc *performer.Service, s *folder.Session, tree string, args []string) (any, error) {
			t, err := parseTime(*since)
			if err != nil {
				return nil, err
			}
			return nil, svc.Delete(ctx, s, tree, args[0], t)
		}
	}},

	"trash": {args: 1, usage: "<id>", bind: func(fs *flag.FlagSet) call {
		since := fs.String("if-unmodified-since", "", "Fail when the folder changed after this RFC 3339 time")
		return func(ctx context.Context, svc *performer.Service, s *folder.Session, tree string, args []string) (any, error) {
			t, err := parseTime(*since)
			if err != nil {
				return nil, err
			}
			return nil, svc.Trash(ctx, s, tree, args[0], t)
		}
	}},

	"clear": {args: 1, usage: "<id>", bind: func(*flag.FlagSet) call {
		return func(ctx context.Context, svc *performer.Service, s *folder.Session, tree string, args []string) (any, error) {
			return nil, svc.Clear(ctx, s, tree, args[0])
		}
	}},

	"restore": {args: -1, usage: "<id>...", bind: func(fs *flag.FlagSet) call {
		dest := fs.String("destination", folder.PrivateID, "Parent for folders whose original parent is gone")
		return func(ctx context.Context, svc *performer.Service, s *folder.Session, tree string, args []string) (any, error) {
			return svc.Restore(ctx, s, tree, args, *dest)
		}
	}},

	"updates": {args: 1, usage: "<since>", bind: func(fs *flag.FlagSet) call {
		types := fs.String("content-types", "", "Comma-separated content types of modified folders")
		ignoreDeleted := fs.Bool("ignore-deleted", false, "Skip deleted folders")
		return func(ctx context.Context, svc *performer.Service, s *folder.Session, tree string, args []string) (any, error) {
			since, err := parseTime(args[0])
			if err != nil {
				return nil, err
			}
			cts, err := parseContentTypes(*types)
			if err != nil {
				return nil, err
			}
			res, err := svc.UpdatesSince(ctx, s, performer.UpdatesRequest{
				TreeID:        tree,
				Since:         since,
				ContentTypes:  cts,
				IgnoreDeleted: *ignoreDeleted,
			})
			if err != nil {
				return nil, err
			}
			return newUpdatesView(res), nil
		}
	}},

	"search": {args: 1, usage: "<query>", bind: func(fs *flag.FlagSet) call {
		root := fs.String("root", "", "Search below this folder only (default: whole tree)")
		deep := fs.Bool("recursive", true, "Search the whole subtree of --root")
		start := fs.Int("start", 0, "First hit of the page")
		end := fs.Int("end", 0, "End of the page, exclusive (0 = all)")
		since := fs.String("since", "", "Skip folders last modified before this RFC 3339 time")
		return func(ctx context.Context, svc *performer.Service, s *folder.Session, tree string, args []string) (any, error) {
			t, err := parseTime(*since)
			if err != nil {
				return nil, err
			}
			res, err := svc.Search(ctx, s, performer.SearchRequest{
				TreeID:            tree,
				RootID:            *root,
				Query:             args[0],
				Since:             t,
				IncludeSubfolders: *deep,
				Start:             *start,
				End:               *end,
			})
			if err != nil {
				return nil, err
			}
			v := newListView(res.Folders, res.Warnings)
			v.Total = res.Total
			return v, nil
		}
	}},

	"visible": {args: 0, bind: func(fs *flag.FlagSet) call {
		ct := fs.String("content-type", string(folder.ContentCalendar), "Content type")
		typ := fs.String("type", string(folder.TypePrivate), "Folder type (private, public, shared)")
		return func(ctx context.Context, svc *performer.Service, s *folder.Session, tree string, _ []string) (any, error) {
			parsed, err := folder.ParseContentType(*ct)
			if err != nil {
				return nil, err
			}
			res, err := svc.VisibleFolders(ctx, s, tree, parsed, folder.Type(*typ))
			if err != nil {
				return nil, err
			}
			return newListView(res.Folders, res.Warnings), nil
		}
	}},

	"all-visible": {args: 0, bind: func(fs *flag.FlagSet) call {
		ct := fs.String("content-type", "", "Content type (default: every type)")
		return func(ctx context.Context, svc *performer.Service, s *folder.Session, tree string, _ []string) (any, error) {
			var parsed folder.ContentType
			if *ct != "" {
				var err error
				if parsed, err = folder.ParseContentType(*ct); err != nil {
					return nil, err
				}
			}
			res, err := svc.AllVisible(ctx, s, tree, parsed)
			if err != nil {
				return nil, err
			}
			return newListView(res.Folders, res.Warnings), nil
		}
	}},

	"shared": {args: 0, bind: func(fs *flag.FlagSet) call {
		ct := fs.String("content-type", string(folder.ContentCalendar), "Content type")
		return func(ctx context.Context, svc *performer.Service, s *folder.Session, tree string, _ []string) (any, error) {
			parsed, err := folder.ParseContentType(*ct)
			if err != nil {
				return nil, err
			}
			res, err := svc.UserSharedFolders(ctx, s, tree, parsed)
			if err != nil {
				return nil, err
			}
			return newListView(res.Folders, res.Warnings), nil
		}
	}},

	"default": {args: 0, bind: func(fs *flag.FlagSet) call {
		ct := fs.String("content-type", string(folder.ContentCalendar), "Content type")
		typ := fs.String("type", string(folder.TypePrivate), "Folder type")
		return func(ctx context.Context, svc *performer.Service, s *folder.Session, tree string, _ []string) (any, error) {
			parsed, err := folder.ParseContentType(*ct)
			if err != nil {
				return nil, err
			}
			f, err := svc.DefaultFolder(ctx, s, tree, parsed, folder.Type(*typ))
			if err != nil {
				return nil, err
			}
			return newFolderView(f), nil
		}
	}},

	"check": {args: 0, bind: func(*flag.FlagSet) call {
		return func(ctx context.Context, svc *performer.Service, s *folder.Session, tree string, _ []string) (any, error) {
			return nil, svc.CheckConsistency(ctx, s, tree)
		}
	}},
}

// runOperation parses the common and the command flags, opens the
// configured storages and runs the command.
func runOperation(name string, cmd operation, args []string) error {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to the configuration file")
	tree := fs.String("tree", folder.RealTreeID, "Folder tree")
	user := fs.Int("user", 0, "Acting user id")
	groups := fs.String("groups", "", "Comma-separated group ids of the user")
	locale := fs.String("locale", "en", "Locale of localized names")
	tz := fs.String("tz", "UTC", "Time zone of returned dates")
	sharedAccess := fs.Bool("shared-access", false, "Grant access to folders shared by other users")
	run := cmd.bind(fs)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: dittofolders %s [flags] %s\n\nFlags:\n", name, cmd.usage)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	positional := fs.Args()
	if (cmd.args >= 0 && len(positional) != cmd.args) || (cmd.args < 0 && len(positional) == 0) {
		fs.Usage()
		os.Exit(2)
	}

	groupIDs, err := parseInts(*groups)
	if err != nil {
		return fmt.Errorf("invalid --groups: %w", err)
	}
	session := &folder.Session{
		UserID:                 *user,
		Groups:                 groupIDs,
		Locale:                 *locale,
		TimeZone:               *tz,
		FullSharedFolderAccess: *sharedAccess,
	}

	ctx := context.Background()
	a, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.close()

	out, err := run(ctx, a.svc, session, *tree, positional)
	if err != nil {
		return err
	}
	if out == nil {
		out = map[string]string{"status": "ok"}
	}
	return printYAML(os.Stdout, out)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: expected RFC 3339", s)
	}
	return t, nil
}

func parseContentTypes(s string) ([]folder.ContentType, error) {
	var out []folder.ContentType
	for _, part := range splitList(s) {
		ct, err := folder.ParseContentType(part)
		if err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, nil
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, part := range splitList(s) {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
