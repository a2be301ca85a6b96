package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"google.golang.org/grpc"
)

var errUsage = errors.New("usage")

// caller is satisfied by grpcserver.Client.
type caller interface {
	Call(ctx context.Context, method string, in map[string]any, opts ...grpc.CallOption) (map[string]any, error)
}

type command struct {
	method string
	flags  func(fs *flag.FlagSet) func() (map[string]any, error)
}

func need(name, v string) error {
	if v == "" {
		return fmt.Errorf("need -%s", name)
	}
	return nil
}

func videosOnly(fs *flag.FlagSet) func() (map[string]any, error) {
	videos := fs.String("videos", "", "comma-separated video ids")
	return func() (map[string]any, error) {
		return map[string]any{"videos": *videos}, need("videos", *videos)
	}
}

func tagsAndVideos(fs *flag.FlagSet) func() (map[string]any, error) {
	tags := fs.String("tags", "", "comma-separated tags")
	videos := fs.String("videos", "", "comma-separated video ids")
	return func() (map[string]any, error) {
		if err := need("tags", *tags); err != nil {
			return nil, err
		}
		return map[string]any{"tags": *tags, "videos": *videos}, need("videos", *videos)
	}
}

func paged(fs *flag.FlagSet, extra func(map[string]any)) func() (map[string]any, error) {
	skip := fs.Int("skip", 0, "items to skip")
	limit := fs.Int("limit", 0, "page size (0 = server default)")
	return func() (map[string]any, error) {
		in := map[string]any{"skip": *skip, "limit": *limit}
		if extra != nil {
			extra(in)
		}
		return in, nil
	}
}

var commands = map[string]command{
	"login": {method: "EnsureUser", flags: func(fs *flag.FlagSet) func() (map[string]any, error) {
		fs.String("token", "", "access token")
		name := fs.String("name", "", "display name")
		pic := fs.String("picture", "", "picture URL")
		return func() (map[string]any, error) {
			return map[string]any{"name": *name, "picture_url": *pic}, nil
		}
	}},
	"whoami": {method: "GetUser", flags: func(*flag.FlagSet) func() (map[string]any, error) {
		return func() (map[string]any, error) { return nil, nil }
	}},
	"tag":       {method: "AddTags", flags: tagsAndVideos},
	"untag":     {method: "RemoveTags", flags: tagsAndVideos},
	"untag-all": {method: "RemoveAllTags", flags: videosOnly},
	"save":      {method: "SaveVideos", flags: videosOnly},
	"rm":        {method: "RemoveVideos", flags: videosOnly},
	"delete-account": {method: "DeleteAccount", flags: func(fs *flag.FlagSet) func() (map[string]any, error) {
		yes := fs.Bool("yes", false, "confirm")
		return func() (map[string]any, error) {
			if !*yes {
				return nil, errors.New("refusing without -yes")
			}
			return nil, nil
		}
	}},
	"tags": {method: "ListTags", flags: func(fs *flag.FlagSet) func() (map[string]any, error) {
		prefix := fs.String("prefix", "", "tag prefix")
		return paged(fs, func(in map[string]any) { in["prefix"] = *prefix })
	}},
	"video-tags": {method: "ListVideoTags", flags: func(fs *flag.FlagSet) func() (map[string]any, error) {
		video := fs.String("video", "", "video id")
		return func() (map[string]any, error) {
			return map[string]any{"video": *video}, need("video", *video)
		}
	}},
	"videos": {method: "ListVideos", flags: func(fs *flag.FlagSet) func() (map[string]any, error) {
		tags := fs.String("tags", "", "comma-separated tags")
		all := fs.Bool("all", false, "match all tags instead of any")
		return paged(fs, func(in map[string]any) {
			in["tags"] = *tags
			in["match_all"] = *all
		})
	}},
	"video": {method: "GetVideo", flags: func(fs *flag.FlagSet) func() (map[string]any, error) {
		id := fs.String("id", "", "video id")
		return func() (map[string]any, error) {
			return map[string]any{"id": *id}, need("id", *id)
		}
	}},
	"global-tags": {method: "ListGlobalTags", flags: func(fs *flag.FlagSet) func() (map[string]any, error) {
		return paged(fs, nil)
	}},

	"purge":   {method: "RemoveVideosGlobally", flags: videosOnly},
	"refresh": {method: "RefreshVideos", flags: videosOnly},
	"reconcile": {method: "Reconcile", flags: func(*flag.FlagSet) func() (map[string]any, error) {
		return func() (map[string]any, error) { return nil, nil }
	}},
}

// buildRequest resolves a subcommand and its flags into a method call.
func buildRequest(cmd string, args []string) (string, map[string]any, error) {
	c, ok := commands[cmd]
	if !ok {
		return "", nil, fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	build := c.flags(fs)
	if err := fs.Parse(args); err != nil {
		return "", nil, err
	}
	in, err := build()
	if err != nil {
		return "", nil, err
	}
	return c.method, in, nil
}

// run executes one subcommand and prints the reply as JSON.
func run(ctx context.Context, cl caller, cmd string, args []string, w io.Writer) error {
	method, in, err := buildRequest(cmd, args)
	if err != nil {
		return err
	}
	out, err := cl.Call(ctx, method, in)
	if err != nil {
		return err
	}
	printJSON(w, out)
	return nil
}
