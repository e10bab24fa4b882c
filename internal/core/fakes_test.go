package core

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/valter-silva-au/mpt/pkg/models"
)

// memStore implements every store interface in memory for tests.
type memStore struct {
	mu sync.Mutex

	projects    map[int64]models.Project
	tasks       map[int64]models.Task
	members     map[int64]models.Membership
	assignments map[int64]models.Assignment
	history     []models.HistoryEntry
	nextID      int64

	saves      int
	historyErr error
	saveErr    error
	memberErr  error
}

func newMemStore() *memStore {
	return &memStore{
		projects:    make(map[int64]models.Project),
		tasks:       make(map[int64]models.Task),
		members:     make(map[int64]models.Membership),
		assignments: make(map[int64]models.Assignment),
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

// seedTask stores t as is, keeping its id.
func (s *memStore) seedTask(t models.Task) {
	s.tasks[t.ID] = t.Clone()
	if t.ID > s.nextID {
		s.nextID = t.ID
	}
}

func (s *memStore) seedProject(p models.Project) {
	s.projects[p.ID] = p
	if p.ID > s.nextID {
		s.nextID = p.ID
	}
}

func (s *memStore) seedMember(m models.Membership) models.Membership {
	if m.ID == 0 {
		m.ID = s.id()
	}
	s.members[m.ID] = m
	return m
}

// TaskStore

func (s *memStore) GetTask(_ context.Context, id int64) (models.Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t.Clone(), ok, nil
}

func (s *memStore) SaveTask(_ context.Context, t models.Task) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return models.Task{}, s.saveErr
	}
	s.tasks[t.ID] = t.Clone()
	return t.Clone(), nil
}

func (s *memStore) CreateTask(_ context.Context, t models.Task) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.id()
	s.tasks[t.ID] = t.Clone()
	return t, nil
}

func (s *memStore) ListTasksByProject(_ context.Context, projectID int64) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Task
	for _, t := range s.tasks {
		if t.ProjectID == projectID {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (s *memStore) DeleteTasksByProject(_ context.Context, projectID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tasks {
		if t.ProjectID == projectID {
			delete(s.tasks, id)
		}
	}
	return nil
}

// ProjectStore

func (s *memStore) GetProject(_ context.Context, id int64) (models.Project, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	return p, ok, nil
}

func (s *memStore) GetProjectByName(_ context.Context, name string) (models.Project, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.projects {
		if p.Name == name {
			return p, true, nil
		}
	}
	return models.Project{}, false, nil
}

func (s *memStore) CreateProject(_ context.Context, p models.Project) (models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	s.projects[p.ID] = p
	return p, nil
}

func (s *memStore) DeleteProject(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projects, id)
	return nil
}

func (s *memStore) ListProjects(_ context.Context) ([]models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Project
	for _, p := range s.projects {
		out = append(out, p)
	}
	return out, nil
}

// MembershipStore

func (s *memStore) MembershipsByProject(_ context.Context, projectID int64) ([]models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Membership
	for _, m := range s.members {
		if m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) MembershipsByUser(_ context.Context, userID int64) ([]models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Membership
	for _, m := range s.members {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) GetMembership(_ context.Context, id int64) (models.Membership, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	return m, ok, nil
}

func (s *memStore) AddMembership(_ context.Context, m models.Membership) (models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.memberErr != nil {
		return models.Membership{}, s.memberErr
	}
	for _, existing := range s.members {
		if existing.ProjectID == m.ProjectID && existing.UserID == m.UserID {
			return models.Membership{}, ErrAlreadyMember
		}
	}
	m.ID = s.id()
	s.members[m.ID] = m
	return m, nil
}

func (s *memStore) UpdateMembership(_ context.Context, m models.Membership) (models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[m.ID]; !ok {
		return models.Membership{}, ErrMembershipNotFound
	}
	s.members[m.ID] = m
	return m, nil
}

func (s *memStore) RemoveMembership(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, id)
	return nil
}

func (s *memStore) RemoveMembershipsByProject(_ context.Context, projectID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range s.members {
		if m.ProjectID == projectID {
			delete(s.members, id)
		}
	}
	return nil
}

// HistoryStore

func (s *memStore) AppendHistory(_ context.Context, e models.HistoryEntry) (models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.historyErr != nil {
		return models.HistoryEntry{}, s.historyErr
	}
	s.history = append(s.history, e)
	return e, nil
}

func (s *memStore) HistoryByTask(_ context.Context, taskID int64) ([]models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.HistoryEntry
	for _, e := range s.history {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out, nil
}

// AssignmentStore

func (s *memStore) FindAssignment(_ context.Context, taskID, membershipID int64) (models.Assignment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.TaskID == taskID && a.MembershipID == membershipID {
			return a, true, nil
		}
	}
	return models.Assignment{}, false, nil
}

func (s *memStore) GetAssignment(_ context.Context, id int64) (models.Assignment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	return a, ok, nil
}

func (s *memStore) CreateAssignment(_ context.Context, a models.Assignment) (models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id()
	s.assignments[a.ID] = a
	return a, nil
}

func (s *memStore) DeleteAssignment(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assignments, id)
	return nil
}

func (s *memStore) AssignmentsByTask(_ context.Context, taskID int64) ([]models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Assignment
	for _, a := range s.assignments {
		if a.TaskID == taskID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) DeleteAssignmentsByTasks(_ context.Context, taskIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[int64]bool, len(taskIDs))
	for _, id := range taskIDs {
		drop[id] = true
	}
	for id, a := range s.assignments {
		if drop[a.TaskID] {
			delete(s.assignments, id)
		}
	}
	return nil
}

// recordingEvents captures logged events.
type recordingEvents struct {
	mu     sync.Mutex
	events []string
	data   []map[string]any
}

func (r *recordingEvents) LogEvent(eventType string, data map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	r.data = append(r.data, data)
	return nil
}

func (r *recordingEvents) has(eventType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == eventType {
			return true
		}
	}
	return false
}

// stubNotifier records notices and optionally fails.
type stubNotifier struct {
	notices []AssignmentNotice
	err     error
}

func (n *stubNotifier) NotifyAssignment(_ context.Context, notice AssignmentNotice) error {
	n.notices = append(n.notices, notice)
	return n.err
}

var errBoom = errors.New("boom")
