package tool

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// listDirectory implements LIST_DIRECTORY (spec.md §4.3): a glob-rooted
// ASCII tree when the argument contains "*", otherwise the directory's
// immediate children.
func listDirectory(tc *Context, input string) string {
	arg := strings.TrimSpace(input)
	if arg == "" {
		arg = "."
	}

	if strings.Contains(arg, "*") {
		return listDirectoryGlob(tc, arg)
	}

	path := resolvePath(tc.WorkingDir, arg)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Sprintf("Directory not found: %s", arg)
	}
	if !info.IsDir() {
		return fmt.Sprintf("Not a directory: %s", arg)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Sprintf("Directory not found: %s", arg)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var lines []string
	for _, e := range entries {
		if e.IsDir() {
			lines = append(lines, fmt.Sprintf("[dir]  %s/", e.Name()))
		} else {
			lines = append(lines, fmt.Sprintf("[file] %s", e.Name()))
		}
	}
	if len(lines) == 0 {
		return fmt.Sprintf("Directory: %s\n(empty)", arg)
	}
	return fmt.Sprintf("Directory: %s\n\n%s", arg, strings.Join(lines, "\n"))
}

// listDirectoryGlob runs a glob rooted at the working directory and
// renders matches as an ASCII tree.
func listDirectoryGlob(tc *Context, pattern string) string {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return fmt.Sprintf("ERROR: invalid glob pattern: %s", err)
	}
	// gobwas/glob keeps the slashes around "**" literal, so "src/**/*.ts"
	// alone does not match "src/a.ts". A second pattern with every "**/"
	// removed covers paths where those segments span no directory.
	var shallow glob.Glob
	if strings.Contains(pattern, "**/") {
		shallow, _ = glob.Compile(strings.ReplaceAll(pattern, "**/", ""), '/')
	}

	var matches []string
	root := tc.WorkingDir
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if g.Match(rel) || (shallow != nil && shallow.Match(rel)) {
			matches = append(matches, rel)
		}
		return nil
	})

	if len(matches) == 0 {
		return "No matches found"
	}
	sort.Strings(matches)
	return renderTree(matches)
}

// renderTree builds an ASCII tree (├──/└── connectors, directories marked
// with a trailing "/") out of a flat list of slash-separated relative paths.
func renderTree(paths []string) string {
	type node struct {
		name     string
		children map[string]*node
		isLeaf   bool
	}
	root := &node{children: map[string]*node{}}

	for _, p := range paths {
		parts := strings.Split(p, "/")
		cur := root
		for i, part := range parts {
			child, ok := cur.children[part]
			if !ok {
				child = &node{children: map[string]*node{}}
				cur.children[part] = child
			}
			if i == len(parts)-1 {
				child.isLeaf = true
			}
			cur = child
		}
	}

	var lines []string
	var walk func(n *node, prefix string)
	walk = func(n *node, prefix string) {
		names := make([]string, 0, len(n.children))
		for name := range n.children {
			names = append(names, name)
		}
		sort.Strings(names)
		for i, name := range names {
			child := n.children[name]
			isLast := i == len(names)-1
			connector := "├── "
			childPrefix := prefix + "│   "
			if isLast {
				connector = "└── "
				childPrefix = prefix + "    "
			}
			suffix := ""
			if !child.isLeaf {
				suffix = "/"
			}
			lines = append(lines, prefix+connector+name+suffix)
			walk(child, childPrefix)
		}
	}
	walk(root, "")

	return strings.Join(lines, "\n")
}
