package store

import (
	"fmt"
	"time"

	"github.com/confkit/confkit/internal/domain"
)

// BlobStore mints recording artifact URLs. The core only references
// recordings by URL; bytes live elsewhere.
type BlobStore struct {
	BaseURL string
}

func (b BlobStore) ArtifactURL(conf domain.ConferenceID, started time.Time) string {
	return fmt.Sprintf("%s/%s/%d.mp4", b.BaseURL, conf, started.Unix())
}
