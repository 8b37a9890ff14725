package sync

import "github.com/cloudsub/subsync/internal/config"

// Kind is the canonical media kind used on the wire and in dedup keys.
type Kind string

const (
	// KindMovie is the canonical movie kind.
	KindMovie Kind = "Movie"

	// KindTV is the canonical episodic kind.
	KindTV Kind = "TV"
)

// kindLabels maps every raw type label the host emits to its canonical kind.
// Labels outside this table are unrecognized and the change is dropped.
var kindLabels = map[string]Kind{
	"电影":    KindMovie,
	"Movie": KindMovie,
	"电视剧":   KindTV,
	"TV":    KindTV,
}

// NormalizeKind resolves a raw subscription type label to its canonical kind.
// The second return is false for labels with no known mapping.
func NormalizeKind(label string) (Kind, bool) {
	kind, ok := kindLabels[label]
	return kind, ok
}

// kindAllowed reports whether the per-kind toggle in cfg admits this kind.
func kindAllowed(cfg config.Config, kind Kind) bool {
	switch kind {
	case KindMovie:
		return cfg.SyncMovie
	case KindTV:
		return cfg.SyncTV
	default:
		return false
	}
}
