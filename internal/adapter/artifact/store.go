// Package artifact provides the in-tree implementation of the artifact store
// contract. The production backend (object storage for receipts and
// proof-of-delivery photos) is an external collaborator; this implementation
// derives the URL a real backend would return and logs the write.
package artifact

import (
	"context"
	"fmt"

	"orderflow/internal/adapter/logger"
	"orderflow/internal/interfaces"
)

type store struct {
	bucket string
	lgr    logger.Logger
}

func NewStore(bucket string, lgr logger.Logger) interfaces.ArtifactStore {
	return &store{bucket: bucket, lgr: lgr}
}

func (s *store) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	url := fmt.Sprintf("https://%s.storage.local/%s", s.bucket, key)
	s.lgr.Debug("artifact_stored", "Artifact stored", "", map[string]interface{}{
		"key":          key,
		"content_type": contentType,
		"bytes":        len(body),
	})
	return url, nil
}
