// Package memstore is an in-memory implementation of the repository ports.
// Units of work are serialized and rolled back by restoring a snapshot, which
// gives tests the same all-or-nothing behavior as the postgres store.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kursadbilgin/labelflow/internal/domain"
	"github.com/kursadbilgin/labelflow/internal/repository"
)

type data struct {
	projects    map[string]domain.Project
	datasets    map[string]domain.Dataset
	categories  map[string]domain.DefectCategory
	items       map[string]domain.WorkItem
	batches     map[string]domain.Batch
	memberships map[string]domain.Membership
	marks       map[string]domain.LabelMark
	verdicts    map[string][]domain.ReviewVerdict
	activity    map[string]domain.ActivityEntry
}

func (d *data) clone() data {
	verdicts := make(map[string][]domain.ReviewVerdict, len(d.verdicts))
	for k, v := range d.verdicts {
		verdicts[k] = slices.Clone(v)
	}
	return data{
		projects:    maps.Clone(d.projects),
		datasets:    maps.Clone(d.datasets),
		categories:  maps.Clone(d.categories),
		items:       maps.Clone(d.items),
		batches:     maps.Clone(d.batches),
		memberships: maps.Clone(d.memberships),
		marks:       maps.Clone(d.marks),
		verdicts:    verdicts,
		activity:    maps.Clone(d.activity),
	}
}

// Store holds all entities in memory.
type Store struct {
	// WrapRepos, when set, decorates the repositories handed to each unit of work.
	WrapRepos func(repository.Repos) repository.Repos

	txMu sync.Mutex
	mu   sync.Mutex
	d    data
}

func New() *Store {
	return &Store{d: data{
		projects:    map[string]domain.Project{},
		datasets:    map[string]domain.Dataset{},
		categories:  map[string]domain.DefectCategory{},
		items:       map[string]domain.WorkItem{},
		batches:     map[string]domain.Batch{},
		memberships: map[string]domain.Membership{},
		marks:       map[string]domain.LabelMark{},
		verdicts:    map[string][]domain.ReviewVerdict{},
		activity:    map[string]domain.ActivityEntry{},
	}}
}

var _ repository.UnitOfWork = (*Store)(nil)

func (s *Store) Repos() repository.Repos {
	r := repository.Repos{
		Projects:         projectRepo{s},
		Datasets:         datasetRepo{s},
		DefectCategories: categoryRepo{s},
		WorkItems:        workItemRepo{s},
		Batches:          batchRepo{s},
		Memberships:      membershipRepo{s},
		LabelMarks:       markRepo{s},
		Verdicts:         verdictRepo{s},
	}
	if s.WrapRepos != nil {
		r = s.WrapRepos(r)
	}
	return r
}

func (s *Store) Do(ctx context.Context, fn func(r repository.Repos) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.d.clone()
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(s.Repos()); err != nil {
		s.mu.Lock()
		s.d = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// Activity returns the activity log repository.
func (s *Store) Activity() repository.ActivityRepository {
	return activityRepo{s}
}

// SeedCategories inserts defect categories directly.
func (s *Store) SeedCategories(categories ...domain.DefectCategory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range categories {
		s.d.categories[c.ID] = c
	}
}

// SetItemStatus overwrites an item status, bypassing workflow rules.
func (s *Store) SetItemStatus(id string, status domain.ItemStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.d.items[id]; ok {
		item.Status = status
		s.d.items[id] = item
	}
}

func (s *Store) lock() func() {
	s.mu.Lock()
	return s.mu.Unlock
}

type projectRepo struct{ s *Store }

func (r projectRepo) Create(_ context.Context, p *domain.Project) error {
	defer r.s.lock()()
	if _, ok := r.s.d.projects[p.ID]; ok {
		return domain.ErrConflict
	}
	stampCreated(&p.CreatedAt, &p.UpdatedAt)
	r.s.d.projects[p.ID] = *p
	return nil
}

func (r projectRepo) GetByID(_ context.Context, id string) (*domain.Project, error) {
	defer r.s.lock()()
	p, ok := r.s.d.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

type datasetRepo struct{ s *Store }

func (r datasetRepo) Create(_ context.Context, d *domain.Dataset) error {
	defer r.s.lock()()
	if _, ok := r.s.d.datasets[d.ID]; ok {
		return domain.ErrConflict
	}
	stampCreated(&d.CreatedAt, &d.UpdatedAt)
	r.s.d.datasets[d.ID] = *d
	return nil
}

func (r datasetRepo) GetByID(_ context.Context, id string) (*domain.Dataset, error) {
	defer r.s.lock()()
	d, ok := r.s.d.datasets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &d, nil
}

func (r datasetRepo) GetByIDs(_ context.Context, ids []string) ([]domain.Dataset, error) {
	defer r.s.lock()()
	out := make([]domain.Dataset, 0, len(ids))
	for _, id := range uniq(ids) {
		if d, ok := r.s.d.datasets[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

type categoryRepo struct{ s *Store }

func (r categoryRepo) List(_ context.Context) ([]domain.DefectCategory, error) {
	defer r.s.lock()()
	out := slices.Collect(maps.Values(r.s.d.categories))
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r categoryRepo) GetByIDs(_ context.Context, ids []string) ([]domain.DefectCategory, error) {
	defer r.s.lock()()
	out := make([]domain.DefectCategory, 0, len(ids))
	for _, id := range uniq(ids) {
		if c, ok := r.s.d.categories[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

type workItemRepo struct{ s *Store }

func (r workItemRepo) Create(_ context.Context, item *domain.WorkItem) error {
	defer r.s.lock()()
	if _, ok := r.s.d.items[item.ID]; ok {
		return domain.ErrConflict
	}
	stampCreated(&item.CreatedAt, &item.UpdatedAt)
	r.s.d.items[item.ID] = *item
	return nil
}

func (r workItemRepo) GetByID(_ context.Context, id string) (*domain.WorkItem, error) {
	defer r.s.lock()()
	item, ok := r.s.d.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &item, nil
}

func (r workItemRepo) GetByIDs(_ context.Context, ids []string) ([]domain.WorkItem, error) {
	defer r.s.lock()()
	out := make([]domain.WorkItem, 0, len(ids))
	for _, id := range uniq(ids) {
		if item, ok := r.s.d.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r workItemRepo) List(_ context.Context, params repository.ItemListParams) ([]domain.WorkItem, int64, error) {
	defer r.s.lock()()
	var out []domain.WorkItem
	for _, item := range r.s.d.items {
		if params.DatasetID != nil && item.DatasetID != *params.DatasetID {
			continue
		}
		if params.Status != nil && item.Status != *params.Status {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	total := int64(len(out))
	if params.After != nil {
		after := *params.After
		rest := out[:0:0]
		for _, b := range out {
			if b.CreatedAt.Before(after.CreatedAt) || (b.CreatedAt.Equal(after.CreatedAt) && b.ID < after.ID) {
				rest = append(rest, b)
			}
		}
		return paginate(rest, 1, params.PageSize), total, nil
	}
	return paginate(out, params.Page, params.PageSize), total, nil
}

func (r workItemRepo) TransitionStatus(_ context.Context, id string, from, to domain.ItemStatus) error {
	defer r.s.lock()()
	item, ok := r.s.d.items[id]
	if !ok || item.Status != from {
		return domain.ErrConflict
	}
	item.Status = to
	item.UpdatedAt = time.Now().UTC()
	r.s.d.items[id] = item
	return nil
}

func (r workItemRepo) BulkUpdateStatus(_ context.Context, ids []string, to domain.ItemStatus) (int64, error) {
	defer r.s.lock()()
	var n int64
	for _, id := range uniq(ids) {
		item, ok := r.s.d.items[id]
		if !ok {
			continue
		}
		item.Status = to
		item.UpdatedAt = time.Now().UTC()
		r.s.d.items[id] = item
		n++
	}
	return n, nil
}

func (r workItemRepo) CountByStatus(_ context.Context, projectID string) ([]repository.StatusCount, error) {
	defer r.s.lock()()
	counts := map[string]int{}
	for _, item := range r.s.d.items {
		if ds, ok := r.s.d.datasets[item.DatasetID]; ok && ds.ProjectID == projectID {
			counts[string(item.Status)]++
		}
	}
	return statusCounts(counts), nil
}

type batchRepo struct{ s *Store }

func (r batchRepo) Create(_ context.Context, b *domain.Batch) error {
	defer r.s.lock()()
	if _, ok := r.s.d.batches[b.ID]; ok {
		return domain.ErrConflict
	}
	stampCreated(&b.CreatedAt, &b.UpdatedAt)
	r.s.d.batches[b.ID] = *b
	return nil
}

func (r batchRepo) GetByID(_ context.Context, id string) (*domain.Batch, error) {
	defer r.s.lock()()
	b, ok := r.s.d.batches[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &b, nil
}

// LockByID is GetByID; units of work are already serialized.
func (r batchRepo) LockByID(ctx context.Context, id string) (*domain.Batch, error) {
	return r.GetByID(ctx, id)
}

func (r batchRepo) List(_ context.Context, params repository.BatchListParams) ([]domain.Batch, int64, error) {
	defer r.s.lock()()
	var out []domain.Batch
	for _, b := range r.s.d.batches {
		if params.ProjectID != nil && b.ProjectID != *params.ProjectID {
			continue
		}
		if params.AssigneeID != nil && b.AssigneeID != *params.AssigneeID {
			continue
		}
		if params.Status != nil && b.Status != *params.Status {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	total := int64(len(out))
	if params.After != nil {
		after := *params.After
		rest := out[:0:0]
		for _, b := range out {
			if b.CreatedAt.Before(after.CreatedAt) || (b.CreatedAt.Equal(after.CreatedAt) && b.ID < after.ID) {
				rest = append(rest, b)
			}
		}
		return paginate(rest, 1, params.PageSize), total, nil
	}
	return paginate(out, params.Page, params.PageSize), total, nil
}

func (r batchRepo) Update(_ context.Context, b *domain.Batch) error {
	defer r.s.lock()()
	cur, ok := r.s.d.batches[b.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cur.Status = b.Status
	cur.TotalItems = b.TotalItems
	cur.CompletedItems = b.CompletedItems
	cur.SubmittedAt = b.SubmittedAt
	cur.CompletedAt = b.CompletedAt
	cur.UpdatedAt = b.UpdatedAt
	r.s.d.batches[b.ID] = cur
	return nil
}

func (r batchRepo) Delete(_ context.Context, id string) error {
	defer r.s.lock()()
	if _, ok := r.s.d.batches[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.d.batches, id)
	return nil
}

func (r batchRepo) CountByStatus(_ context.Context, projectID string) ([]repository.StatusCount, error) {
	defer r.s.lock()()
	counts := map[string]int{}
	for _, b := range r.s.d.batches {
		if b.ProjectID == projectID {
			counts[string(b.Status)]++
		}
	}
	return statusCounts(counts), nil
}

type membershipRepo struct{ s *Store }

func (r membershipRepo) Create(_ context.Context, m *domain.Membership) error {
	defer r.s.lock()()
	for _, existing := range r.s.d.memberships {
		if existing.WorkItemID == m.WorkItemID {
			return domain.ErrConflict
		}
	}
	r.s.d.memberships[m.ID] = *m
	return nil
}

func (r membershipRepo) GetByID(_ context.Context, id string) (*domain.Membership, error) {
	defer r.s.lock()()
	m, ok := r.s.d.memberships[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &m, nil
}

func (r membershipRepo) GetByBatchAndItem(_ context.Context, batchID, workItemID string) (*domain.Membership, error) {
	defer r.s.lock()()
	for _, m := range r.s.d.memberships {
		if m.BatchID == batchID && m.WorkItemID == workItemID {
			return &m, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r membershipRepo) ListByBatch(_ context.Context, batchID string) ([]domain.Membership, error) {
	defer r.s.lock()()
	return r.filter(func(m domain.Membership) bool { return m.BatchID == batchID }), nil
}

func (r membershipRepo) ListByWorkItem(_ context.Context, workItemID string) ([]domain.Membership, error) {
	defer r.s.lock()()
	return r.filter(func(m domain.Membership) bool { return m.WorkItemID == workItemID }), nil
}

func (r membershipRepo) filter(keep func(domain.Membership) bool) []domain.Membership {
	out := make([]domain.Membership, 0)
	for _, m := range r.s.d.memberships {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AssignedAt.Equal(out[j].AssignedAt) {
			return out[i].AssignedAt.Before(out[j].AssignedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r membershipRepo) CountByBatch(_ context.Context, batchID string) (int, int, error) {
	defer r.s.lock()()
	total, completed := 0, 0
	for _, m := range r.s.d.memberships {
		if m.BatchID != batchID {
			continue
		}
		total++
		if m.Status == domain.MembershipStatusCompleted {
			completed++
		}
	}
	return total, completed, nil
}

func (r membershipRepo) Update(_ context.Context, m *domain.Membership) error {
	defer r.s.lock()()
	cur, ok := r.s.d.memberships[m.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cur.Status = m.Status
	cur.StartedAt = m.StartedAt
	cur.CompletedAt = m.CompletedAt
	r.s.d.memberships[m.ID] = cur
	return nil
}

func (r membershipRepo) DeleteByIDs(_ context.Context, ids []string) error {
	defer r.s.lock()()
	for _, id := range ids {
		delete(r.s.d.memberships, id)
	}
	return nil
}

type markRepo struct{ s *Store }

func (r markRepo) Create(_ context.Context, m *domain.LabelMark) error {
	defer r.s.lock()()
	if _, ok := r.s.d.marks[m.ID]; ok {
		return domain.ErrConflict
	}
	stampCreated(&m.CreatedAt, &m.UpdatedAt)
	cp := *m
	cp.Points = slices.Clone(m.Points)
	r.s.d.marks[m.ID] = cp
	return nil
}

func (r markRepo) GetByID(_ context.Context, id string) (*domain.LabelMark, error) {
	defer r.s.lock()()
	m, ok := r.s.d.marks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	m.Points = slices.Clone(m.Points)
	return &m, nil
}

func (r markRepo) Update(_ context.Context, m *domain.LabelMark) error {
	defer r.s.lock()()
	cur, ok := r.s.d.marks[m.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cur.ClassName = m.ClassName
	cur.Shape = m.Shape
	cur.Points = slices.Clone(m.Points)
	cur.UpdatedAt = m.UpdatedAt
	r.s.d.marks[m.ID] = cur
	return nil
}

func (r markRepo) Delete(_ context.Context, id string) error {
	defer r.s.lock()()
	if _, ok := r.s.d.marks[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.d.marks, id)
	return nil
}

func (r markRepo) ListByWorkItem(_ context.Context, workItemID string) ([]domain.LabelMark, error) {
	defer r.s.lock()()
	out := make([]domain.LabelMark, 0)
	for _, m := range r.s.d.marks {
		if m.WorkItemID == workItemID {
			m.Points = slices.Clone(m.Points)
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r markRepo) DeleteByWorkItems(_ context.Context, workItemIDs []string) (int64, error) {
	defer r.s.lock()()
	var deleted int64
	for id, m := range r.s.d.marks {
		if slices.Contains(workItemIDs, m.WorkItemID) {
			delete(r.s.d.marks, id)
			deleted++
		}
	}
	return deleted, nil
}

type verdictRepo struct{ s *Store }

func (r verdictRepo) Create(_ context.Context, v *domain.ReviewVerdict) error {
	defer r.s.lock()()
	existing := r.s.d.verdicts[v.WorkItemID]
	v.Sequence = len(existing) + 1
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	cp := *v
	cp.DefectCategories = slices.Clone(v.DefectCategories)
	r.s.d.verdicts[v.WorkItemID] = append(existing, cp)
	return nil
}

func (r verdictRepo) ListByWorkItem(_ context.Context, workItemID string) ([]domain.ReviewVerdict, error) {
	defer r.s.lock()()
	return slices.Clone(r.s.d.verdicts[workItemID]), nil
}

func (r verdictRepo) LatestByWorkItems(_ context.Context, workItemIDs []string) (map[string]domain.ReviewVerdict, error) {
	defer r.s.lock()()
	out := make(map[string]domain.ReviewVerdict, len(workItemIDs))
	for _, id := range uniq(workItemIDs) {
		if latest := domain.Latest(r.s.d.verdicts[id]); latest != nil {
			out[id] = *latest
		}
	}
	return out, nil
}

type activityRepo struct{ s *Store }

func (r activityRepo) Create(_ context.Context, e *domain.ActivityEntry) error {
	defer r.s.lock()()
	if _, ok := r.s.d.activity[e.ID]; !ok {
		r.s.d.activity[e.ID] = *e
	}
	return nil
}

func (r activityRepo) ListByTarget(_ context.Context, targetType, targetID string, limit int) ([]domain.ActivityEntry, error) {
	defer r.s.lock()()
	out := make([]domain.ActivityEntry, 0)
	for _, e := range r.s.d.activity {
		if e.TargetType == targetType && e.TargetID == targetID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func stampCreated(created, updated *time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = *created
	}
}

func uniq(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func paginate[T any](rows []T, page, pageSize int) []T {
	page = max(page, 1)
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)
	start := (page - 1) * pageSize
	if start >= len(rows) {
		return []T{}
	}
	return rows[start:min(start+pageSize, len(rows))]
}

func statusCounts(counts map[string]int) []repository.StatusCount {
	out := make([]repository.StatusCount, 0, len(counts))
	for status, n := range counts {
		out = append(out, repository.StatusCount{Status: status, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out
}
