package performer

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/marmos91/dittofolders/pkg/folder"
)

// SearchRequest selects folders by name.
type SearchRequest struct {
	TreeID string

	// RootID limits the search to the folders below it. Empty searches the
	// whole tree.
	RootID string

	// Query is matched case-insensitively against folder names.
	Query string

	// Since skips folders last modified before it. Zero disables the filter.
	Since time.Time

	// IncludeSubfolders searches the whole subtree of RootID instead of its
	// direct children only.
	IncludeSubfolders bool

	// Start and End select the page [Start, End) of the sorted hits. A
	// non-positive End returns every hit from Start on.
	Start int
	End   int
}

// SearchResult is one page of search hits.
type SearchResult struct {
	Folders  []*folder.UserizedFolder
	Total    int
	Warnings []folder.Warning
}

// Search finds the visible folders whose name contains the query. Every
// searchable storage of the tree is queried; the hits are merged and sorted
// by name, then id.
func (s *Service) Search(ctx context.Context, session *folder.Session, req SearchRequest) (*SearchResult, error) {
	res := &SearchResult{}
	warnings, err := s.run(ctx, "search", session, false, func(o *operation) error {
		return o.search(req, res)
	})
	if err != nil {
		return nil, err
	}
	res.Warnings = warnings
	return res, nil
}

type hit struct {
	folder  *folder.Folder
	storage folder.Storage
}

func (o *operation) search(req SearchRequest, res *SearchResult) error {
	if _, err := o.tree(req.TreeID); err != nil {
		return err
	}
	if req.Start < 0 || (req.End > 0 && req.End < req.Start) {
		return folder.NewError(folder.ErrMissingParameter, req.TreeID, "", "invalid page [%d, %d)", req.Start, req.End)
	}
	rootID := req.RootID

	var storages []folder.Storage
	for _, s := range o.svc.registry.AllStorages(req.TreeID) {
		if _, ok := s.(folder.Searchable); ok {
			storages = append(storages, s)
		}
	}

	results := make([][]hit, len(storages))
	err := o.fanOut(len(storages), func(i int, t *operation) error {
		s := storages[i]
		if err := t.open(s); err != nil {
			t.params.AddWarning(folder.WarningFromError(err, req.TreeID, ""))
			return nil
		}
		found, err := s.(folder.Searchable).SearchByName(t.ctx, req.TreeID, rootID, req.Query, req.Since, req.IncludeSubfolders, t.params)
		if err != nil {
			t.params.AddWarning(folder.WarningFromError(err, req.TreeID, rootID))
			return nil
		}
		for _, f := range found {
			perm, err := t.permission(f)
			if err != nil || !perm.Visible() {
				continue
			}
			results[i] = append(results[i], hit{folder: f, storage: s})
		}
		return nil
	})
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	var hits []hit
	for _, group := range results {
		for _, h := range group {
			if !seen[h.folder.ID] {
				seen[h.folder.ID] = true
				hits = append(hits, h)
			}
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := strings.ToLower(hits[i].folder.Name), strings.ToLower(hits[j].folder.Name)
		if a != b {
			return a < b
		}
		return hits[i].folder.ID < hits[j].folder.ID
	})

	res.Total = len(hits)
	start, end := req.Start, req.End
	if end <= 0 || end > len(hits) {
		end = len(hits)
	}
	if start > end {
		start = end
	}
	for _, h := range hits[start:end] {
		perm, err := o.permission(h.folder)
		if err != nil {
			o.params.AddWarning(folder.WarningFromError(err, req.TreeID, h.folder.ID))
			continue
		}
		if err := o.open(h.storage); err != nil {
			return err
		}
		u, err := o.userize(h.storage, h.folder, perm, req.TreeID, false, publicSemantics(h.folder))
		if err != nil {
			o.params.AddWarning(folder.WarningFromError(err, req.TreeID, h.folder.ID))
			continue
		}
		res.Folders = append(res.Folders, u)
	}
	return nil
}
