package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AssetURLPrefix is where re-hosted conversion assets are served from.
const AssetURLPrefix = "/uploads/assets"

// RewriteAssetLinks rewrites markdown image references from the conversion
// service's internal names to locally re-hosted URLs. Idempotent: rewritten
// links no longer match any original asset name, so a second pass over the
// same content is a byte-identical no-op.
func RewriteAssetLinks(content, jobID string, assetNames []string) string {
	for _, name := range assetNames {
		if name == "" {
			continue
		}
		newURL := AssetURL(jobID, name)
		content = strings.ReplaceAll(content, "("+name+")", "("+newURL+")")
		if !strings.HasPrefix(name, "./") {
			content = strings.ReplaceAll(content, "(./"+name+")", "("+newURL+")")
		}
	}
	return content
}

// AssetURL returns the re-hosted URL for one named asset.
func AssetURL(jobID, name string) string {
	return fmt.Sprintf("%s/%s/%s", AssetURLPrefix, jobID, filepath.Base(name))
}

// SaveAsset writes one asset under dataDir so the re-hosted URL resolves.
func SaveAsset(dataDir, jobID, name string, data []byte) error {
	dir := filepath.Join(dataDir, "assets", jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create asset directory: %w", err)
	}
	target := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("write asset %s: %w", name, err)
	}
	return nil
}
