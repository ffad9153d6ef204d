package git

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Commit is one entry of the commit history.
type Commit struct {
	SHA     string    `json:"sha"`
	Author  string    `json:"author"`
	Email   string    `json:"email"`
	Date    time.Time `json:"date"`
	Subject string    `json:"subject"`
}

// DiffOptions configures GetDiff.
type DiffOptions struct {
	Paths    []string // Limit the diff to these paths
	NameOnly bool     // Only list changed paths
	Stat     bool     // Diffstat instead of a patch
	Cached   bool     // Compare the index instead of the working tree
	Context  int      // Lines of context; zero uses git's default
}

const (
	fieldSep  = "\x1f"
	recordSep = "\x1e"
)

// GetDiff returns the diff between base and target. An empty target compares
// base with the working tree (or the index with Cached); an empty base as
// well compares the working tree with the index.
func (g *Context) GetDiff(ctx context.Context, base, target string, opts DiffOptions) (string, error) {
	args := []string{"diff"}
	switch {
	case opts.NameOnly:
		args = append(args, "--name-only")
	case opts.Stat:
		args = append(args, "--stat")
	}
	if opts.Context > 0 {
		args = append(args, "-U"+strconv.Itoa(opts.Context))
	}
	if opts.Cached {
		args = append(args, "--cached")
	}
	if base != "" {
		args = append(args, base)
	}
	if target != "" {
		args = append(args, target)
	}
	if len(opts.Paths) > 0 {
		args = append(args, "--")
		args = append(args, opts.Paths...)
	}

	out, err := g.outputGit(ctx, args...)
	if err != nil {
		return "", g.wrap("diff", err)
	}
	return string(out), nil
}

// GetCommitHistory returns up to count commits reachable from HEAD, newest
// first. A repository without commits has an empty history.
func (g *Context) GetCommitHistory(ctx context.Context, count int) ([]Commit, error) {
	if count <= 0 {
		count = 10
	}

	format := strings.Join([]string{"%H", "%an", "%ae", "%aI", "%s"}, fieldSep) + recordSep
	out, err := g.runGit(ctx, "log", "-n", strconv.Itoa(count), "--pretty=format:"+format)
	if err != nil {
		msg := commandOutput(err)
		if strings.Contains(msg, "does not have any commits") || strings.Contains(msg, "bad default revision") {
			return nil, nil
		}
		return nil, g.wrap("log", err)
	}

	var commits []Commit
	for _, record := range strings.Split(out, recordSep) {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		fields := strings.Split(record, fieldSep)
		if len(fields) != 5 {
			continue
		}
		date, _ := time.Parse(time.RFC3339, fields[3])
		commits = append(commits, Commit{
			SHA:     fields[0],
			Author:  fields[1],
			Email:   fields[2],
			Date:    date,
			Subject: fields[4],
		})
	}
	return commits, nil
}
