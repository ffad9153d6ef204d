package artifact

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gserrors "github.com/randalmurphal/genstage/errors"
	"github.com/randalmurphal/genstage/filetree"
)

// LoadFeature reads a stored feature with file and diff contents.
func (s *Store) LoadFeature(name string) (*FeatureArtifact, error) {
	feature, err := s.loadFeatureMeta(name)
	if err != nil {
		return nil, err
	}

	dir := s.FeatureDir(name)
	for i, f := range feature.Files {
		data, err := os.ReadFile(filetree.Join(filepath.Join(dir, "files"), f.RelativePath))
		if err != nil {
			return nil, notFoundOrIO("feature file "+f.RelativePath, err)
		}
		feature.Files[i].Content = data
	}
	for i, d := range feature.Diffs {
		data, err := os.ReadFile(filetree.Join(filepath.Join(dir, "diffs"), d.Name))
		if err != nil {
			return nil, notFoundOrIO("feature diff "+d.Name, err)
		}
		feature.Diffs[i].Content = string(data)
	}
	return feature, nil
}

// ListFeatures returns stored features without contents, sorted by name.
// A missing features directory yields an empty list.
func (s *Store) ListFeatures() ([]*FeatureArtifact, error) {
	root := s.featuresDir()
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*FeatureArtifact{}, nil
		}
		return nil, gserrors.IO("list features", err)
	}

	features := make([]*FeatureArtifact, 0, len(entries))
	var errs []error
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		feature, err := s.loadFeatureMeta(entry.Name())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		features = append(features, feature)
	}

	sort.Slice(features, func(i, j int) bool { return features[i].Name < features[j].Name })
	return features, errors.Join(errs...)
}

// MarkFeatureApplied sets the feature's applied marker. It is the only
// mutation allowed on a stored feature.
func (s *Store) MarkFeatureApplied(name string, marker AppliedMarker) error {
	feature, err := s.loadFeatureMeta(name)
	if err != nil {
		return err
	}
	if marker.AppliedAt.IsZero() {
		marker.AppliedAt = s.now()
	}
	feature.Applied = &marker

	if err := writeJSON(filepath.Join(s.FeatureDir(name), metaFileName), feature); err != nil {
		return gserrors.IO("write feature metadata", err)
	}
	return nil
}

func (s *Store) loadFeatureMeta(name string) (*FeatureArtifact, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.FeatureDir(name), metaFileName))
	if err != nil {
		return nil, notFoundOrIO("feature "+name, err)
	}
	var feature FeatureArtifact
	if err := json.Unmarshal(data, &feature); err != nil {
		return nil, gserrors.IO("parse feature metadata", err)
	}
	return &feature, nil
}
