package models

import (
	"fmt"
	"io"
	"sort"
	"strconv"
)

// MaxImages is the hard cap on images per project, enforced client-side
// before any upload request is issued. The server enforces the same limit.
const MaxImages = 20

// IdentityKind selects how a backend addresses one image in mutation
// requests. Older backends key images by storage path or by position in
// the list; current ones assign a stable id.
type IdentityKind int

const (
	IdentityID IdentityKind = iota
	IdentityPath
	IdentityIndex
)

// Identity is the stable key used to address a specific image. Exactly one
// of the value fields is meaningful, chosen by Kind.
type Identity struct {
	Kind  IdentityKind
	ID    string
	Path  string
	Index int
}

func ByID(id string) Identity { return Identity{Kind: IdentityID, ID: id} }

func ByPath(path string) Identity { return Identity{Kind: IdentityPath, Path: path} }

func ByIndex(index int) Identity { return Identity{Kind: IdentityIndex, Index: index} }

// Matches reports whether this identity addresses the given image.
func (id Identity) Matches(ref ImageRef) bool {
	switch id.Kind {
	case IdentityID:
		return ref.ID != "" && ref.ID == id.ID
	case IdentityPath:
		return ref.Path != "" && ref.Path == id.Path
	case IdentityIndex:
		return ref.OrderIndex == id.Index
	}
	return false
}

func (id Identity) String() string {
	switch id.Kind {
	case IdentityID:
		return id.ID
	case IdentityPath:
		return id.Path
	case IdentityIndex:
		return strconv.Itoa(id.Index)
	}
	return ""
}

// ImageRef is one image belonging to a project. ID may be empty for legacy
// records, in which case Path is the identity.
type ImageRef struct {
	ID         string `json:"id,omitempty"`
	Path       string `json:"path,omitempty"`
	URL        string `json:"url,omitempty"`
	Filename   string `json:"filename,omitempty"`
	OrderIndex int    `json:"orderIndex"`
	IsFeatured bool   `json:"isFeatured"`
}

// Identity returns the preferred stable key for this image: id when the
// server assigned one, path for legacy records, position as a last resort.
func (r ImageRef) Identity() Identity {
	if r.ID != "" {
		return ByID(r.ID)
	}
	if r.Path != "" {
		return ByPath(r.Path)
	}
	return ByIndex(r.OrderIndex)
}

// DisplayURL renders the image location with a cache-bust query so renderers
// re-fetch bytes after the set changes. Version 0 means "never mutated" and
// returns the location untouched.
func (r ImageRef) DisplayURL(version int64) string {
	loc := r.URL
	if loc == "" {
		loc = r.Path
	}
	if version == 0 || loc == "" {
		return loc
	}
	return fmt.Sprintf("%s?v=%d", loc, version)
}

// FileUpload is one binary blob handed to an upload request.
type FileUpload struct {
	Filename string
	Content  io.Reader
}

// ImageSet is the ordered image collection for one project. Items are kept
// sorted by OrderIndex; Version counts applied server confirmations and
// feeds cache busting.
type ImageSet struct {
	ProjectID string     `json:"projectId"`
	Items     []ImageRef `json:"items"`
	Version   int64      `json:"-"`
}

// Featured returns the currently featured image, if any.
func (s ImageSet) Featured() (ImageRef, bool) {
	for _, it := range s.Items {
		if it.IsFeatured {
			return it, true
		}
	}
	return ImageRef{}, false
}

// Normalize returns a copy of items sorted by OrderIndex, with order indices
// reassigned to the contiguous range 0..n-1 and the featured flag fixed up:
// at most one item keeps it, and a non-empty set without one gets the first
// item featured.
func Normalize(items []ImageRef) []ImageRef {
	out := make([]ImageRef, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })

	featured := -1
	for i := range out {
		if out[i].IsFeatured {
			if featured == -1 {
				featured = i
			} else {
				out[i].IsFeatured = false
			}
		}
	}
	if featured == -1 && len(out) > 0 {
		out[0].IsFeatured = true
	}
	for i := range out {
		out[i].OrderIndex = i
	}
	return out
}

// Find returns the index of the item addressed by id, or -1.
func Find(items []ImageRef, id Identity) int {
	for i, it := range items {
		if id.Matches(it) {
			return i
		}
	}
	return -1
}

// IsPermutation reports whether order addresses every item of items exactly
// once — no unknown identities, no duplicates, no omissions.
func IsPermutation(items []ImageRef, order []Identity) bool {
	if len(order) != len(items) {
		return false
	}
	used := make([]bool, len(items))
	for _, id := range order {
		found := false
		for i, it := range items {
			if !used[i] && id.Matches(it) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Permute returns items rearranged into the sequence given by order, with
// order indices reassigned. Callers must have validated order with
// IsPermutation first.
func Permute(items []ImageRef, order []Identity) []ImageRef {
	out := make([]ImageRef, 0, len(items))
	used := make([]bool, len(items))
	for _, id := range order {
		for i, it := range items {
			if !used[i] && id.Matches(it) {
				used[i] = true
				out = append(out, it)
				break
			}
		}
	}
	for i := range out {
		out[i].OrderIndex = i
	}
	return out
}
