package artifact

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	gserrors "github.com/randalmurphal/genstage/errors"
	"github.com/randalmurphal/genstage/filetree"
)

// StorageStats summarizes what the store holds on disk.
type StorageStats struct {
	Runs         int        `json:"runs"`
	Archives     int        `json:"archives"`
	Features     int        `json:"features"`
	RunBytes     int64      `json:"runBytes"`
	ArchiveBytes int64      `json:"archiveBytes"`
	FeatureBytes int64      `json:"featureBytes"`
	Oldest       *time.Time `json:"oldest,omitempty"`
	Newest       *time.Time `json:"newest,omitempty"`
}

// TotalBytes is the combined size of runs, archives and features.
func (st *StorageStats) TotalBytes() int64 {
	return st.RunBytes + st.ArchiveBytes + st.FeatureBytes
}

func (st *StorageStats) String() string {
	s := fmt.Sprintf("%d runs (%s), %d archived (%s), %d features (%s)",
		st.Runs, humanize.Bytes(uint64(st.RunBytes)),
		st.Archives, humanize.Bytes(uint64(st.ArchiveBytes)),
		st.Features, humanize.Bytes(uint64(st.FeatureBytes)),
	)
	if st.Oldest != nil {
		s += fmt.Sprintf(", oldest run %s", humanize.Time(*st.Oldest))
	}
	return s
}

// Stats collects storage statistics.
func (s *Store) Stats() (*StorageStats, error) {
	runs, err := s.AllRuns()
	if runs == nil {
		return nil, err
	}

	stats := &StorageStats{Runs: len(runs)}
	if len(runs) > 0 {
		newest := runs[0].StartedAt
		oldest := runs[len(runs)-1].StartedAt
		stats.Newest = &newest
		stats.Oldest = &oldest
	}

	archives, err := s.ListArchives()
	if err != nil {
		return nil, err
	}
	stats.Archives = len(archives)

	features, _ := s.ListFeatures()
	stats.Features = len(features)

	for dir, dst := range map[string]*int64{
		s.runsDir():     &stats.RunBytes,
		s.archiveDir():  &stats.ArchiveBytes,
		s.featuresDir(): &stats.FeatureBytes,
	} {
		size, err := dirSize(dir)
		if err != nil {
			return nil, err
		}
		*dst = size
	}
	return stats, nil
}

func dirSize(dir string) (int64, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, nil
	}
	size, err := filetree.Size(dir)
	if err != nil {
		return 0, gserrors.IO("measure "+dir, err)
	}
	return size, nil
}
