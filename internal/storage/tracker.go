package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/mpt/internal/core"
	"github.com/valter-silva-au/mpt/pkg/models"
)

// TrackerFileName is the data file kept in the base directory.
const TrackerFileName = "tracker.yaml"

// trackerFile is the top-level structure of tracker.yaml.
type trackerFile struct {
	Version     string                      `yaml:"version"`
	Sequence    int64                       `yaml:"sequence"`
	Projects    map[int64]models.Project    `yaml:"projects"`
	Memberships map[int64]models.Membership `yaml:"memberships"`
	Tasks       map[int64]models.Task       `yaml:"tasks"`
	Assignments map[int64]models.Assignment `yaml:"assignments"`
}

func newTrackerFile() trackerFile {
	return trackerFile{
		Version:     "1.0",
		Projects:    make(map[int64]models.Project),
		Memberships: make(map[int64]models.Membership),
		Tasks:       make(map[int64]models.Task),
		Assignments: make(map[int64]models.Assignment),
	}
}

func (f *trackerFile) nextID() int64 {
	f.Sequence++
	return f.Sequence
}

// FileStore keeps projects, memberships, tasks and assignments in a single
// tracker.yaml file. Every call loads the file, applies its change and
// saves it again while holding both an in-process mutex and an advisory
// file lock, so concurrent callers never interleave a read-modify-write.
type FileStore struct {
	basePath string
	mu       sync.Mutex
}

// NewFileStore creates a FileStore rooted at basePath.
func NewFileStore(basePath string) *FileStore {
	return &FileStore{basePath: basePath}
}

func (s *FileStore) filePath() string {
	return filepath.Join(s.basePath, TrackerFileName)
}

// view runs fn against a freshly loaded snapshot without saving.
func (s *FileStore) view(fn func(*trackerFile) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return err
	}
	return fn(&data)
}

// update runs fn against a freshly loaded snapshot and saves the result
// when fn succeeds.
func (s *FileStore) update(fn func(*trackerFile) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.basePath, 0o750); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	unlock, err := lockFile(s.filePath() + ".lock")
	if err != nil {
		return err
	}
	defer func() { _ = unlock() }()

	data, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(&data); err != nil {
		return err
	}
	return s.save(&data)
}

func (s *FileStore) load() (trackerFile, error) {
	raw, err := os.ReadFile(s.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return newTrackerFile(), nil
		}
		return trackerFile{}, fmt.Errorf("loading tracker: %w", err)
	}
	var tf trackerFile
	if err := yaml.Unmarshal(raw, &tf); err != nil {
		return trackerFile{}, fmt.Errorf("loading tracker: parsing YAML: %w", err)
	}
	if tf.Projects == nil {
		tf.Projects = make(map[int64]models.Project)
	}
	if tf.Memberships == nil {
		tf.Memberships = make(map[int64]models.Membership)
	}
	if tf.Tasks == nil {
		tf.Tasks = make(map[int64]models.Task)
	}
	if tf.Assignments == nil {
		tf.Assignments = make(map[int64]models.Assignment)
	}
	return tf, nil
}

func (s *FileStore) save(tf *trackerFile) error {
	raw, err := yaml.Marshal(tf)
	if err != nil {
		return fmt.Errorf("saving tracker: marshaling YAML: %w", err)
	}
	tmp := s.filePath() + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("saving tracker: writing file: %w", err)
	}
	if err := os.Rename(tmp, s.filePath()); err != nil {
		return fmt.Errorf("saving tracker: replacing file: %w", err)
	}
	return nil
}

// --- Projects ---

// GetProject returns the project with id, or false when none exists.
func (s *FileStore) GetProject(_ context.Context, id int64) (models.Project, bool, error) {
	var (
		p  models.Project
		ok bool
	)
	err := s.view(func(tf *trackerFile) error {
		p, ok = tf.Projects[id]
		return nil
	})
	return p, ok, err
}

// GetProjectByName looks a project up by its exact name.
func (s *FileStore) GetProjectByName(_ context.Context, name string) (models.Project, bool, error) {
	var (
		p  models.Project
		ok bool
	)
	err := s.view(func(tf *trackerFile) error {
		for _, candidate := range tf.Projects {
			if candidate.Name == name {
				p, ok = candidate, true
				return nil
			}
		}
		return nil
	})
	return p, ok, err
}

// CreateProject stores p under a fresh id. Names must be unique.
func (s *FileStore) CreateProject(_ context.Context, p models.Project) (models.Project, error) {
	err := s.update(func(tf *trackerFile) error {
		for _, existing := range tf.Projects {
			if existing.Name == p.Name {
				return fmt.Errorf("creating project %q: %w", p.Name, core.ErrProjectExists)
			}
		}
		p.ID = tf.nextID()
		tf.Projects[p.ID] = p
		return nil
	})
	if err != nil {
		return models.Project{}, err
	}
	return p, nil
}

// DeleteProject removes the project record only.
func (s *FileStore) DeleteProject(_ context.Context, id int64) error {
	return s.update(func(tf *trackerFile) error {
		if _, ok := tf.Projects[id]; !ok {
			return fmt.Errorf("deleting project %d: %w", id, core.ErrProjectNotFound)
		}
		delete(tf.Projects, id)
		return nil
	})
}

// ListProjects returns every project ordered by id.
func (s *FileStore) ListProjects(_ context.Context) ([]models.Project, error) {
	var out []models.Project
	err := s.view(func(tf *trackerFile) error {
		out = make([]models.Project, 0, len(tf.Projects))
		for _, p := range tf.Projects {
			out = append(out, p)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

// --- Memberships ---

// MembershipsByProject returns the memberships of a project ordered by id.
func (s *FileStore) MembershipsByProject(_ context.Context, projectID int64) ([]models.Membership, error) {
	return s.filterMemberships(func(m models.Membership) bool { return m.ProjectID == projectID })
}

// MembershipsByUser returns every membership held by a user.
func (s *FileStore) MembershipsByUser(_ context.Context, userID int64) ([]models.Membership, error) {
	return s.filterMemberships(func(m models.Membership) bool { return m.UserID == userID })
}

func (s *FileStore) filterMemberships(keep func(models.Membership) bool) ([]models.Membership, error) {
	var out []models.Membership
	err := s.view(func(tf *trackerFile) error {
		for _, m := range tf.Memberships {
			if keep(m) {
				out = append(out, m)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

// GetMembership returns the membership with id, or false when none exists.
func (s *FileStore) GetMembership(_ context.Context, id int64) (models.Membership, bool, error) {
	var (
		m  models.Membership
		ok bool
	)
	err := s.view(func(tf *trackerFile) error {
		m, ok = tf.Memberships[id]
		return nil
	})
	return m, ok, err
}

// AddMembership stores m under a fresh id, rejecting a second membership of the same user in a project.
func (s *FileStore) AddMembership(_ context.Context, m models.Membership) (models.Membership, error) {
	err := s.update(func(tf *trackerFile) error {
		for _, existing := range tf.Memberships {
			if existing.ProjectID == m.ProjectID && existing.UserID == m.UserID {
				return fmt.Errorf("adding user %d to project %d: %w", m.UserID, m.ProjectID, core.ErrAlreadyMember)
			}
		}
		m.ID = tf.nextID()
		tf.Memberships[m.ID] = m
		return nil
	})
	if err != nil {
		return models.Membership{}, err
	}
	return m, nil
}

// UpdateMembership replaces an existing membership.
func (s *FileStore) UpdateMembership(_ context.Context, m models.Membership) (models.Membership, error) {
	err := s.update(func(tf *trackerFile) error {
		existing, ok := tf.Memberships[m.ID]
		if !ok {
			return fmt.Errorf("updating membership %d: %w", m.ID, core.ErrMembershipNotFound)
		}
		existing.Role = m.Role
		tf.Memberships[m.ID] = existing
		m = existing
		return nil
	})
	if err != nil {
		return models.Membership{}, err
	}
	return m, nil
}

// RemoveMembership deletes a membership and the assignments made through it.
func (s *FileStore) RemoveMembership(_ context.Context, id int64) error {
	return s.update(func(tf *trackerFile) error {
		if _, ok := tf.Memberships[id]; !ok {
			return fmt.Errorf("removing membership %d: %w", id, core.ErrMembershipNotFound)
		}
		delete(tf.Memberships, id)
		for aid, a := range tf.Assignments {
			if a.MembershipID == id {
				delete(tf.Assignments, aid)
			}
		}
		return nil
	})
}

// RemoveMembershipsByProject deletes every membership of a project.
func (s *FileStore) RemoveMembershipsByProject(_ context.Context, projectID int64) error {
	return s.update(func(tf *trackerFile) error {
		for id, m := range tf.Memberships {
			if m.ProjectID == projectID {
				delete(tf.Memberships, id)
			}
		}
		return nil
	})
}

// --- Tasks ---

// GetTask returns the task with id, or false when none exists.
func (s *FileStore) GetTask(_ context.Context, id int64) (models.Task, bool, error) {
	var (
		t  models.Task
		ok bool
	)
	err := s.view(func(tf *trackerFile) error {
		t, ok = tf.Tasks[id]
		return nil
	})
	return t, ok, err
}

// SaveTask overwrites the mutable fields of an existing task. ProjectID and
// CreatedBy keep their stored values.
func (s *FileStore) SaveTask(_ context.Context, t models.Task) (models.Task, error) {
	err := s.update(func(tf *trackerFile) error {
		existing, ok := tf.Tasks[t.ID]
		if !ok {
			return fmt.Errorf("saving task %d: %w", t.ID, core.ErrTaskNotFound)
		}
		t.ProjectID = existing.ProjectID
		t.CreatedBy = existing.CreatedBy
		tf.Tasks[t.ID] = t.Clone()
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	return t, nil
}

// CreateTask stores t under a fresh id in an existing project.
func (s *FileStore) CreateTask(_ context.Context, t models.Task) (models.Task, error) {
	err := s.update(func(tf *trackerFile) error {
		if _, ok := tf.Projects[t.ProjectID]; !ok {
			return fmt.Errorf("creating task in project %d: %w", t.ProjectID, core.ErrProjectNotFound)
		}
		t.ID = tf.nextID()
		tf.Tasks[t.ID] = t.Clone()
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	return t, nil
}

// ListTasksByProject returns the tasks of a project ordered by id.
func (s *FileStore) ListTasksByProject(_ context.Context, projectID int64) ([]models.Task, error) {
	var out []models.Task
	err := s.view(func(tf *trackerFile) error {
		for _, t := range tf.Tasks {
			if t.ProjectID == projectID {
				out = append(out, t)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

// DeleteTasksByProject deletes every task of a project.
func (s *FileStore) DeleteTasksByProject(_ context.Context, projectID int64) error {
	return s.update(func(tf *trackerFile) error {
		for id, t := range tf.Tasks {
			if t.ProjectID == projectID {
				delete(tf.Tasks, id)
			}
		}
		return nil
	})
}

// --- Assignments ---

// FindAssignment returns the assignment linking a task to a membership, if any.
func (s *FileStore) FindAssignment(_ context.Context, taskID, membershipID int64) (models.Assignment, bool, error) {
	var (
		a  models.Assignment
		ok bool
	)
	err := s.view(func(tf *trackerFile) error {
		for _, candidate := range tf.Assignments {
			if candidate.TaskID == taskID && candidate.MembershipID == membershipID {
				a, ok = candidate, true
				return nil
			}
		}
		return nil
	})
	return a, ok, err
}

// GetAssignment returns the assignment with id, or false when none exists.
func (s *FileStore) GetAssignment(_ context.Context, id int64) (models.Assignment, bool, error) {
	var (
		a  models.Assignment
		ok bool
	)
	err := s.view(func(tf *trackerFile) error {
		a, ok = tf.Assignments[id]
		return nil
	})
	return a, ok, err
}

// CreateAssignment stores a under a fresh id. A task is assigned to a membership at most once.
func (s *FileStore) CreateAssignment(_ context.Context, a models.Assignment) (models.Assignment, error) {
	err := s.update(func(tf *trackerFile) error {
		for _, existing := range tf.Assignments {
			if existing.TaskID == a.TaskID && existing.MembershipID == a.MembershipID {
				return fmt.Errorf("assigning task %d: %w", a.TaskID, core.ErrAlreadyAssigned)
			}
		}
		a.ID = tf.nextID()
		tf.Assignments[a.ID] = a
		return nil
	})
	if err != nil {
		return models.Assignment{}, err
	}
	return a, nil
}

// DeleteAssignment removes a single assignment.
func (s *FileStore) DeleteAssignment(_ context.Context, id int64) error {
	return s.update(func(tf *trackerFile) error {
		if _, ok := tf.Assignments[id]; !ok {
			return fmt.Errorf("removing assignment %d: %w", id, core.ErrAssignmentNotFound)
		}
		delete(tf.Assignments, id)
		return nil
	})
}

// AssignmentsByTask returns the assignments of a task ordered by id.
func (s *FileStore) AssignmentsByTask(_ context.Context, taskID int64) ([]models.Assignment, error) {
	var out []models.Assignment
	err := s.view(func(tf *trackerFile) error {
		for _, a := range tf.Assignments {
			if a.TaskID == taskID {
				out = append(out, a)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

// DeleteAssignmentsByTasks deletes every assignment of the given tasks.
func (s *FileStore) DeleteAssignmentsByTasks(_ context.Context, taskIDs []int64) error {
	if len(taskIDs) == 0 {
		return nil
	}
	drop := make(map[int64]struct{}, len(taskIDs))
	for _, id := range taskIDs {
		drop[id] = struct{}{}
	}
	return s.update(func(tf *trackerFile) error {
		for id, a := range tf.Assignments {
			if _, ok := drop[a.TaskID]; ok {
				delete(tf.Assignments, id)
			}
		}
		return nil
	})
}
