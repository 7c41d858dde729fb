package favorite

import (
	"time"

	"storykeeper/internal/domain/story"
)

// Reference is a favorited story. It carries a denormalized copy of the
// story's fields so the favorites view renders offline even when the story
// cache has been evicted or replaced.
type Reference struct {
	StoryID string      `json:"storyId"`
	Story   story.Story `json:"story"`
	AddedAt time.Time   `json:"addedAt"`
}

// Orphaned reports whether the denormalized payload is unusable. Orphaned
// references are filtered out of listings rather than surfaced.
func (r *Reference) Orphaned() bool {
	return r == nil || r.StoryID == "" || !r.Story.Valid()
}
