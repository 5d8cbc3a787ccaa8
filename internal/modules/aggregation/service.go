// Package aggregation rolls finalized time up item hierarchies, projects and users.
// It only reads; active timers never contribute.
package aggregation

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/worktime/internal/modules/timetracking"
)

// ItemReader is the read side of the item store
type ItemReader interface {
	Get(ctx context.Context, itemID string) (*timetracking.Item, error)
	ListChildren(ctx context.Context, parentID string) ([]*timetracking.Item, error)
	ListByProject(ctx context.Context, projectID string) ([]*timetracking.Item, error)
	ListAll(ctx context.Context) ([]*timetracking.Item, error)
}

// Service computes time roll-ups
type Service struct {
	items ItemReader
	log   zerolog.Logger
}

// NewService creates a new aggregation service
func NewService(items ItemReader, log zerolog.Logger) *Service {
	return &Service{
		items: items,
		log:   log.With().Str("service", "aggregation").Logger(),
	}
}

// GetAggregatedTime returns the item's own time and the summed time of all its descendants.
// A parent cycle is cut at the first revisited item.
func (s *Service) GetAggregatedTime(ctx context.Context, itemID string) (*AggregatedTime, error) {
	item, err := s.items.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{item.ID: true}
	sub, err := s.descendantTime(ctx, item.ID, visited)
	if err != nil {
		return nil, err
	}

	own := item.TimeTracking.TotalTimeSpent
	return &AggregatedTime{
		OwnTime:      own,
		SubItemsTime: sub,
		TotalTime:    own + sub,
	}, nil
}

func (s *Service) descendantTime(ctx context.Context, parentID string, visited map[string]bool) (int64, error) {
	children, err := s.items.ListChildren(ctx, parentID)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, child := range children {
		if visited[child.ID] {
			s.log.Warn().
				Str("item_id", child.ID).
				Str("parent_id", parentID).
				Msg("Cycle in item hierarchy, skipping")
			continue
		}
		visited[child.ID] = true

		sub, err := s.descendantTime(ctx, child.ID, visited)
		if err != nil {
			return 0, err
		}
		total += child.TimeTracking.TotalTimeSpent + sub
	}
	return total, nil
}

// GetProjectTimeStats sums a project's time with per-user and per-item
// breakdowns, both sorted by time descending.
func (s *Service) GetProjectTimeStats(ctx context.Context, projectID string) (*ProjectTimeStats, error) {
	items, err := s.items.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	stats := &ProjectTimeStats{
		ProjectID: projectID,
		ByItem:    make([]ItemTime, 0, len(items)),
	}
	durations := make(map[string][]float64)
	for _, item := range items {
		stats.TotalTime += item.TimeTracking.TotalTimeSpent
		stats.ByItem = append(stats.ByItem, itemTime(item))
		for _, entry := range item.TimeTracking.TimeEntries {
			durations[entry.UserID] = append(durations[entry.UserID], float64(entry.Duration))
		}
	}

	stats.ByUser = make([]UserTime, 0, len(durations))
	for userID, d := range durations {
		stats.ByUser = append(stats.ByUser, UserTime{
			UserID:       userID,
			TotalTime:    int64(floats.Sum(d)),
			EntryCount:   len(d),
			MeanDuration: stat.Mean(d, nil),
		})
	}

	sort.SliceStable(stats.ByItem, func(i, j int) bool {
		if stats.ByItem[i].TotalTime != stats.ByItem[j].TotalTime {
			return stats.ByItem[i].TotalTime > stats.ByItem[j].TotalTime
		}
		return stats.ByItem[i].ItemID < stats.ByItem[j].ItemID
	})
	sort.Slice(stats.ByUser, func(i, j int) bool {
		if stats.ByUser[i].TotalTime != stats.ByUser[j].TotalTime {
			return stats.ByUser[i].TotalTime > stats.ByUser[j].TotalTime
		}
		return stats.ByUser[i].UserID < stats.ByUser[j].UserID
	})
	return stats, nil
}

// GetUserTimeStats sums a user's finalized entries per project and per item
func (s *Service) GetUserTimeStats(ctx context.Context, userID string) (*UserTimeStats, error) {
	items, err := s.items.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	stats := &UserTimeStats{UserID: userID}
	byProject := make(map[string]int64)
	var all []float64
	for _, item := range items {
		var own int64
		for _, entry := range item.TimeTracking.TimeEntries {
			if entry.UserID != userID {
				continue
			}
			own += entry.Duration
			all = append(all, float64(entry.Duration))
		}
		if own == 0 {
			continue
		}
		byProject[item.ProjectID] += own
		row := itemTime(item)
		row.TotalTime = own
		stats.ByItem = append(stats.ByItem, row)
		stats.TotalTime += own
	}

	stats.EntryCount = len(all)
	if len(all) > 0 {
		stats.MeanDuration = stat.Mean(all, nil)
	}

	stats.ByProject = make([]ProjectTime, 0, len(byProject))
	for projectID, total := range byProject {
		stats.ByProject = append(stats.ByProject, ProjectTime{ProjectID: projectID, TotalTime: total})
	}
	sort.Slice(stats.ByProject, func(i, j int) bool {
		if stats.ByProject[i].TotalTime != stats.ByProject[j].TotalTime {
			return stats.ByProject[i].TotalTime > stats.ByProject[j].TotalTime
		}
		return stats.ByProject[i].ProjectID < stats.ByProject[j].ProjectID
	})
	sort.SliceStable(stats.ByItem, func(i, j int) bool {
		return stats.ByItem[i].TotalTime > stats.ByItem[j].TotalTime
	})
	if stats.ByItem == nil {
		stats.ByItem = []ItemTime{}
	}
	return stats, nil
}

func itemTime(item *timetracking.Item) ItemTime {
	return ItemTime{
		ItemID:    item.ID,
		ItemKey:   item.Key,
		Title:     item.Title,
		TotalTime: item.TimeTracking.TotalTimeSpent,
	}
}
