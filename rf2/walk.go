package rf2

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileTask names one release file to ingest, decoded and ranked so that
// callers can process dependency order correctly: concepts before
// descriptions/relationships, RefsetDescriptor refset files before any
// refset file whose reification depends on them (spec.md §4.1).
type FileTask struct {
	Path string
	Info FileInfo
}

// subRank breaks ties within FileInfo.Kind.Rank() so RefsetDescriptor refset
// files sort before all other refset files.
func (t FileTask) subRank() int {
	if t.Info.Kind == KindRefset && strings.Contains(filepath.Base(t.Path), "RefsetDescriptor") {
		return 0
	}
	return 1
}

// WalkFiles recursively finds every *.txt file under root that decodes as a
// recognized RF2 release file, ordered for ingestion (spec.md §4.1: C1 feeds
// C2 feeds C3 for every file; RefsetDescriptor files must land before the
// refsets they describe).
func WalkFiles(root string) ([]FileTask, error) {
	var tasks []FileTask
	err := filepath.Walk(root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() || !strings.HasSuffix(fi.Name(), ".txt") {
			return nil
		}
		info, decodeErr := ParseFilename(fi.Name())
		if decodeErr != nil {
			return nil // ignore files that aren't RF2 release files
		}
		tasks = append(tasks, FileTask{Path: path, Info: info})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		ri, rj := tasks[i].Info.Kind.Rank(), tasks[j].Info.Kind.Rank()
		if ri != rj {
			return ri < rj
		}
		return tasks[i].subRank() < tasks[j].subRank()
	})
	return tasks, nil
}
