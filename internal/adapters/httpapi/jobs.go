package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/bnema/accountpool/internal/domain"
	"github.com/gorilla/mux"
)

// JobCancelledEvent is broadcast on the job's stream when it is cancelled.
const JobCancelledEvent = "job.cancelled"

const announceTimeout = 5 * time.Second

type jobResponse struct {
	QueueID   string     `json:"queue_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// CreateJob admits a job for the user. Its stream id is the queue id; a
// cancellation from any process is announced there.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	userID := domain.UserID(mux.Vars(r)["user"])

	queueID, err := h.deps.Jobs.Create(r.Context(), userID, h.announceCancel, h.deps.MaxJobsPerUser)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, jobResponse{QueueID: string(queueID)})
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	job, err := h.deps.Jobs.Get(r.Context(), domain.UserID(vars["user"]), domain.QueueID(vars["queue"]))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	if job == nil {
		respondError(w, http.StatusNotFound, "job queue not found")
		return
	}

	respondJSON(w, http.StatusOK, jobResponse{QueueID: string(job.QueueID), ExpiresAt: &job.ExpiresAt})
}

func (h *Handler) CompleteJob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.deps.Jobs.Complete(r.Context(), domain.UserID(vars["user"]), domain.QueueID(vars["queue"])); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Jobs.Cancel(r.Context(), domain.QueueID(mux.Vars(r)["queue"])); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) announceCancel(queueID domain.QueueID) {
	if h.deps.Events == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), announceTimeout)
	defer cancel()

	event := domain.Event{ID: string(queueID), Type: JobCancelledEvent}
	if err := h.deps.Events.Broadcast(ctx, domain.SubscriptionID(queueID), event); err != nil {
		h.logger.Warn("announce job cancellation", "queue", queueID, "error", err)
	}
}
