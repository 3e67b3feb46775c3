package handlers

import (
	"net/http"

	"github.com/AnshRaj112/tasknest-backend/internal/models"
	"github.com/go-chi/chi/v5"
)

type addTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (h *Handler) AddTask(w http.ResponseWriter, r *http.Request, me *models.User) error {
	var req addTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	tasks, err := h.accounts.AddTask(r.Context(), me, req.Title, req.Description)
	if err != nil {
		return err
	}
	respondTasks(w, "Task added successfully", tasks)
	return nil
}

func (h *Handler) RemoveTask(w http.ResponseWriter, r *http.Request, me *models.User) error {
	tasks, err := h.accounts.RemoveTask(r.Context(), me, chi.URLParam(r, "taskId"))
	if err != nil {
		return err
	}
	respondTasks(w, "Task removed successfully", tasks)
	return nil
}

// ToggleTask flips the completed flag of a task.
func (h *Handler) ToggleTask(w http.ResponseWriter, r *http.Request, me *models.User) error {
	tasks, err := h.accounts.ToggleTask(r.Context(), me, chi.URLParam(r, "taskId"))
	if err != nil {
		return err
	}
	respondTasks(w, "Task updated successfully", tasks)
	return nil
}
