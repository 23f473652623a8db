package tasks

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/basket/taskdeck/internal/gateway"
)

// Reconciler owns the local task collection. Mutations call the backend
// through the gateway and merge the authoritative server record back on
// success; a failed call leaves local state untouched, so the UI never
// shows data the server rejected.
type Reconciler struct {
	gw *gateway.Client

	mu    sync.Mutex
	tasks map[string]Task
	order []string // insertion order, for stable projection ties
}

// NewReconciler builds an empty reconciler over the gateway.
func NewReconciler(gw *gateway.Client) *Reconciler {
	return &Reconciler{
		gw:    gw,
		tasks: make(map[string]Task),
	}
}

// List replaces the entire local collection with the server's set. The
// response may be a bare array or a {success,data} envelope; both
// normalize at the gateway boundary.
func (r *Reconciler) List(ctx context.Context) ([]Task, error) {
	var fetched []Task
	if err := r.gw.Do(ctx, http.MethodGet, "/tasks", nil, &fetched); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.tasks = make(map[string]Task, len(fetched))
	r.order = r.order[:0]
	for _, t := range fetched {
		if _, seen := r.tasks[t.ID]; !seen {
			r.order = append(r.order, t.ID)
		}
		r.tasks[t.ID] = t
	}
	r.mu.Unlock()

	return fetched, nil
}

// Create sends a new task. The title is required and trimmed; an
// empty-after-trim title is rejected locally before any network call. On
// success the server-assigned record is prepended to the collection.
func (r *Reconciler) Create(ctx context.Context, title, description string) (Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Task{}, gateway.ValidationFailure("title", "title is required")
	}

	body := map[string]string{"title": title}
	if description = strings.TrimSpace(description); description != "" {
		body["description"] = description
	}

	var created Task
	if err := r.gw.Do(ctx, http.MethodPost, "/tasks", body, &created); err != nil {
		return Task{}, err
	}

	r.mu.Lock()
	r.tasks[created.ID] = created
	r.order = append([]string{created.ID}, r.order...)
	r.mu.Unlock()

	return created, nil
}

// UpdateFields names the task fields an update may carry. Nil fields are
// omitted from the request body.
type UpdateFields struct {
	Title       *string
	Description *string
	Completed   *bool
}

// Update sends only the provided fields; on success the returned record
// fully replaces the prior entry. The server is authoritative for
// timestamps, so the response is trusted as the complete record rather
// than merged field by field. (Compatibility assumption: the backend
// always returns the full task on update; a partial response here would
// silently keep stale fields.)
func (r *Reconciler) Update(ctx context.Context, id string, fields UpdateFields) (Task, error) {
	body := map[string]any{}
	if fields.Title != nil {
		title := strings.TrimSpace(*fields.Title)
		if title == "" {
			return Task{}, gateway.ValidationFailure("title", "title is required")
		}
		body["title"] = title
	}
	if fields.Description != nil {
		body["description"] = strings.TrimSpace(*fields.Description)
	}
	if fields.Completed != nil {
		body["completed"] = *fields.Completed
	}
	if len(body) == 0 {
		return Task{}, gateway.ValidationFailure("fields", "nothing to update")
	}

	var updated Task
	if err := r.gw.Do(ctx, http.MethodPut, "/tasks/"+id, body, &updated); err != nil {
		return Task{}, err
	}

	r.replace(updated)
	return updated, nil
}

// ToggleCompletion flips the server-side completed flag. No request body;
// the returned record replaces the local entry.
func (r *Reconciler) ToggleCompletion(ctx context.Context, id string) (Task, error) {
	var updated Task
	if err := r.gw.Do(ctx, http.MethodPatch, "/tasks/"+id+"/toggle-complete", nil, &updated); err != nil {
		return Task{}, err
	}
	r.replace(updated)
	return updated, nil
}

// Delete removes the task server-side, then locally. Obtaining user
// confirmation is the caller's concern.
func (r *Reconciler) Delete(ctx context.Context, id string) error {
	if err := r.gw.Do(ctx, http.MethodDelete, "/tasks/"+id, nil, nil); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.tasks, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	return nil
}

// Get returns the local copy of a task.
func (r *Reconciler) Get(id string) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	return t, ok
}

// Len returns the local collection size.
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Project produces an ordered view of the collection. It is a pure
// function of the collection and its arguments: the underlying
// collection is never mutated, and equal inputs yield order-identical
// results. Ties in createdAt keep insertion order.
func (r *Reconciler) Project(filter Filter, sortBy Sort) []Task {
	r.mu.Lock()
	selected := make([]Task, 0, len(r.order))
	for _, id := range r.order {
		t := r.tasks[id]
		switch filter {
		case FilterActive:
			if t.Completed {
				continue
			}
		case FilterCompleted:
			if !t.Completed {
				continue
			}
		}
		selected = append(selected, t)
	}
	r.mu.Unlock()

	sort.SliceStable(selected, func(i, j int) bool {
		if sortBy == SortOldest {
			return selected[i].CreatedAt.Before(selected[j].CreatedAt.Time)
		}
		return selected[i].CreatedAt.After(selected[j].CreatedAt.Time)
	})
	return selected
}

// Stats fetches the dashboard aggregates from GET /tasks/stats.
func (r *Reconciler) Stats(ctx context.Context) (DashboardStats, error) {
	var stats DashboardStats
	if err := r.gw.Do(ctx, http.MethodGet, "/tasks/stats", nil, &stats); err != nil {
		return DashboardStats{}, err
	}
	return stats, nil
}

func (r *Reconciler) replace(t Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, known := r.tasks[t.ID]; !known {
		r.order = append(r.order, t.ID)
	}
	r.tasks[t.ID] = t
}
