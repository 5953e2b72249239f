package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ExpandPaths turns command line arguments into a sorted, de-duplicated
// list of event log files. An argument may be a file, a glob pattern or a
// directory; a directory contributes its regular, non-hidden files (rotated
// logs such as events.log.1 included) without descending further.
func ExpandPaths(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no event logs provided")
	}

	seen := make(map[string]struct{})
	var files []string
	add := func(path string) {
		if _, ok := seen[path]; !ok {
			seen[path] = struct{}{}
			files = append(files, path)
		}
	}

	for _, arg := range args {
		matches := []string{arg}
		if strings.ContainsAny(arg, "*?[") {
			var err error
			if matches, err = filepath.Glob(arg); err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", arg, err)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("no matches for pattern %q", arg)
			}
		}

		for _, path := range matches {
			info, err := os.Stat(path)
			if err != nil {
				return nil, err
			}
			if !info.IsDir() {
				add(path)
				continue
			}
			entries, err := os.ReadDir(path)
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
					add(filepath.Join(path, e.Name()))
				}
			}
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no event logs found in %s", strings.Join(args, ", "))
	}
	sort.Strings(files)
	return files, nil
}
