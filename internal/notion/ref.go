package notion

import "strings"

// taskIDLength is the length of a Notion page ID with the dashes stripped,
// as it appears in the trailing segment of a page URL.
const taskIDLength = 32

// ExtractTaskID recovers the canonical task ID from a Notion page URL.
// The last path segment after the scheme marker is taken, cut at the first
// `?` or `#`, and its trailing 32 characters are the ID. Returns false when
// the input is not an absolute URL or the segment is too short. Pure; no I/O.
func ExtractTaskID(rawURL string) (string, bool) {
	idx := strings.Index(rawURL, "://")
	if idx < 0 {
		return "", false
	}
	rest := rawURL[idx+len("://"):]
	slash := strings.Index(rest, "/")
	if slash < 0 {
		return "", false
	}
	path := rest[slash+1:]
	if cut := strings.IndexAny(path, "?#"); cut >= 0 {
		path = path[:cut]
	}
	path = strings.TrimSuffix(path, "/")
	segment := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		segment = path[i+1:]
	}
	if len(segment) < taskIDLength {
		return "", false
	}
	return segment[len(segment)-taskIDLength:], true
}

// TaskURL reconstructs a permanent link for a task ID.
func TaskURL(taskID string) string {
	return "https://www.notion.so/" + taskID
}
