package orchestrator

import (
	"context"
	"path"
	"sort"
	"strings"

	"github.com/fixpoint-ai/fixpoint/internal/fs"
	"github.com/fixpoint-ai/fixpoint/internal/transaction"
)

const (
	treeMaxDepth   = 3
	treeMaxEntries = 200
	sweepMaxDepth  = 8
)

var skipDirs = map[string]bool{
	"__pycache__":  true,
	"node_modules": true,
	"venv":         true,
	".venv":        true,
	"staticfiles":  true,
}

func skipDir(name string) bool {
	return skipDirs[name] || strings.HasPrefix(name, ".")
}

// refreshTree rebuilds the compact project listing included in oracle
// prompts. Rebuilt once per cycle since fixes may create files.
func (s *session) refreshTree(ctx context.Context) {
	var b strings.Builder
	n := 0
	writeTree(ctx, s.o.fsys, ".", 0, &b, &n)
	s.tree = b.String()
}

func writeTree(ctx context.Context, fsys fs.FileSystem, dir string, depth int, b *strings.Builder, n *int) {
	if depth > treeMaxDepth || *n >= treeMaxEntries {
		return
	}
	entries, err := fsys.ListDir(ctx, dir)
	if err != nil {
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	for _, e := range entries {
		if *n >= treeMaxEntries {
			return
		}
		name := path.Base(e.Path)
		if skipDir(name) || strings.HasSuffix(name, transaction.BackupSuffix) {
			continue
		}
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(name)
		if e.IsDir {
			b.WriteString("/")
		}
		b.WriteString("\n")
		*n++
		if e.IsDir {
			writeTree(ctx, fsys, e.Path, depth+1, b, n)
		}
	}
}

// findBackups walks the tree looking for leftover backup files.
func findBackups(ctx context.Context, fsys fs.FileSystem, dir string, depth int) []string {
	if depth > sweepMaxDepth {
		return nil
	}
	entries, err := fsys.ListDir(ctx, dir)
	if err != nil {
		return nil
	}
	var found []string
	for _, e := range entries {
		name := path.Base(e.Path)
		if e.IsDir {
			if skipDir(name) {
				continue
			}
			found = append(found, findBackups(ctx, fsys, e.Path, depth+1)...)
			continue
		}
		if strings.HasSuffix(name, transaction.BackupSuffix) {
			found = append(found, e.Path)
		}
	}
	return found
}
