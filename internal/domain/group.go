package domain

// ProjectFiles holds the files of one project in first-seen order.
type ProjectFiles struct {
	Project string
	Files   []SearchResult
}

// GroupedFileSet is the deduplicated set of files for one dataset type,
// partitioned by project.
type GroupedFileSet struct {
	DatasetType string
	Projects    []ProjectFiles
	Duplicates  int
}

// FileTarget is one file to place under output/<type>/<project>/.
type FileTarget struct {
	DatasetType string
	Project     string
	Result      SearchResult
}

// Group partitions results by project. The first occurrence of a
// (project, file name) pair wins; later ones are counted as duplicates.
// Projects appear in the order their first file was seen.
func Group(results []SearchResult, datasetType string) GroupedFileSet {
	set := GroupedFileSet{DatasetType: datasetType}
	index := make(map[string]int)
	seen := make(map[[2]string]struct{})

	for _, r := range results {
		project := r.Project()
		key := [2]string{project, r.FileName}
		if _, dup := seen[key]; dup {
			set.Duplicates++
			continue
		}
		seen[key] = struct{}{}

		i, ok := index[project]
		if !ok {
			i = len(set.Projects)
			index[project] = i
			set.Projects = append(set.Projects, ProjectFiles{Project: project})
		}
		set.Projects[i].Files = append(set.Projects[i].Files, r)
	}
	return set
}

// Len returns the number of unique files in the set.
func (g GroupedFileSet) Len() int {
	n := 0
	for _, p := range g.Projects {
		n += len(p.Files)
	}
	return n
}

// Targets flattens the set in project order.
func (g GroupedFileSet) Targets() []FileTarget {
	out := make([]FileTarget, 0, g.Len())
	for _, p := range g.Projects {
		for _, f := range p.Files {
			out = append(out, FileTarget{DatasetType: g.DatasetType, Project: p.Project, Result: f})
		}
	}
	return out
}
