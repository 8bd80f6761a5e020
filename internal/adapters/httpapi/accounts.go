package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bnema/accountpool/internal/application"
	"github.com/bnema/accountpool/internal/domain"
	"github.com/gorilla/mux"
)

type beginRequestResponse struct {
	RequestID string `json:"request_id"`
}

type endRequestBody struct {
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
}

type rotateBody struct {
	Status   string `json:"status,omitempty"`
	TimeOnly bool   `json:"time_only,omitempty"`
}

type rotateResponse struct {
	Pool     poolResponse     `json:"pool"`
	Previous *accountResponse `json:"previous,omitempty"`
	Active   *accountResponse `json:"active,omitempty"`
}

func (h *Handler) BeginRequest(w http.ResponseWriter, r *http.Request) {
	accountID := domain.AccountID(mux.Vars(r)["account"])
	requestID := h.deps.Requests.Begin(r.Context(), accountID)
	respondJSON(w, http.StatusCreated, beginRequestResponse{RequestID: requestID})
}

// EndRequest clears an in-flight marker. A cooldown_until in the body
// records a provider rate-limit deadline in the same call.
func (h *Handler) EndRequest(w http.ResponseWriter, r *http.Request) {
	var body endRequestBody
	if err := decodeOptionalBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	vars := mux.Vars(r)
	h.deps.Requests.End(r.Context(), domain.AccountID(vars["account"]), vars["request"], body.CooldownUntil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RecordGeneration(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Generations.RecordGeneration(r.Context(), domain.AccountID(mux.Vars(r)["account"])); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RotatePool is the failure report of a rotation pool: status names the
// tier the serving account was observed operating under.
func (h *Handler) RotatePool(w http.ResponseWriter, r *http.Request) {
	var body rotateBody
	if err := decodeOptionalBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	opts := application.RotateOptions{RecalculateTimeOnly: body.TimeOnly}
	if body.Status != "" {
		status, err := domain.ParseAccountStatus(body.Status)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Status = status
	}

	result, err := h.deps.Rotator.Rotate(r.Context(), domain.PoolID(mux.Vars(r)["pool"]), opts)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	resp := rotateResponse{Pool: toPoolResponse(result.Pool)}
	if result.Previous != nil {
		previous := toAccountResponse(application.AccountView{Account: *result.Previous})
		resp.Previous = &previous
	}
	if result.Active != nil {
		active := toAccountResponse(application.AccountView{Account: *result.Active})
		resp.Active = &active
	}
	respondJSON(w, http.StatusOK, resp)
}

func decodeOptionalBody(r *http.Request, dst any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
