package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(project, file, title string) SearchResult {
	return SearchResult{
		ProjectID:   project,
		FileName:    file,
		Title:       title,
		DownloadURL: "https://example.com/Projects/" + project + "/" + file,
	}
}

func TestGroup(t *testing.T) {
	t.Run("preserves first-seen order", func(t *testing.T) {
		results := []SearchResult{
			result("B", "b1.tif", ""),
			result("A", "a1.tif", ""),
			result("B", "b2.tif", ""),
		}
		got := Group(results, "dem")

		want := GroupedFileSet{
			DatasetType: "dem",
			Projects: []ProjectFiles{
				{Project: "B", Files: []SearchResult{results[0], results[2]}},
				{Project: "A", Files: []SearchResult{results[1]}},
			},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Group mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("first occurrence wins", func(t *testing.T) {
		results := []SearchResult{
			result("A", "x.tif", "first"),
			result("A", "x.tif", "second"),
		}
		got := Group(results, "dem")
		require.Len(t, got.Projects, 1)
		require.Len(t, got.Projects[0].Files, 1)
		assert.Equal(t, "first", got.Projects[0].Files[0].Title)
		assert.Equal(t, 1, got.Duplicates)
	})

	t.Run("same file name in different projects is not a duplicate", func(t *testing.T) {
		got := Group([]SearchResult{result("A", "x.tif", ""), result("B", "x.tif", "")}, "dem")
		assert.Equal(t, 2, got.Len())
		assert.Zero(t, got.Duplicates)
	})

	t.Run("missing project goes to unassigned", func(t *testing.T) {
		got := Group([]SearchResult{{FileName: "loose.tif", DownloadURL: "https://example.com/loose.tif"}}, "dem")
		require.Len(t, got.Projects, 1)
		assert.Equal(t, UnassignedProject, got.Projects[0].Project)
	})

	t.Run("deterministic", func(t *testing.T) {
		results := []SearchResult{result("A", "1", ""), result("B", "2", ""), result("A", "3", "")}
		assert.Equal(t, Group(results, "lidar"), Group(results, "lidar"))
	})

	t.Run("empty input", func(t *testing.T) {
		got := Group(nil, "dem")
		assert.Zero(t, got.Len())
		assert.Empty(t, got.Targets())
	})
}

func TestGroupedFileSet_Targets(t *testing.T) {
	set := Group([]SearchResult{result("B", "b1", ""), result("A", "a1", ""), result("B", "b2", "")}, "dem")
	targets := set.Targets()
	require.Len(t, targets, 3)

	var order []string
	for _, tg := range targets {
		assert.Equal(t, "dem", tg.DatasetType)
		order = append(order, tg.Project+"/"+tg.Result.FileName)
	}
	assert.Equal(t, []string{"B/b1", "B/b2", "A/a1"}, order)
}
