package httpapi

import (
	"net/http"
	"time"

	"github.com/bnema/accountpool/internal/application"
	"github.com/bnema/accountpool/internal/domain"
	"github.com/gorilla/mux"
)

type poolResponse struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Provider       string     `json:"provider"`
	Mode           string     `json:"mode"`
	MaxConcurrent  int        `json:"max_concurrent,omitempty"`
	NextSwitchTime *time.Time `json:"next_switch_time,omitempty"`
	Version        int64      `json:"version"`
}

// accountResponse never carries the secret reference.
type accountResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Weight        int        `json:"weight"`
	Status        string     `json:"status"`
	Serving       bool       `json:"serving"`
	DisabledAt    *time.Time `json:"disabled_at,omitempty"`
	Generations   int        `json:"generations"`
	ActiveCount   *int       `json:"active_count,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
}

type poolStatusResponse struct {
	poolResponse
	Accounts []accountResponse `json:"accounts"`
}

func toPoolResponse(pool domain.Pool) poolResponse {
	return poolResponse{
		ID:             string(pool.ID),
		Name:           pool.Name,
		Provider:       string(pool.Provider),
		Mode:           string(pool.Mode),
		MaxConcurrent:  pool.MaxConcurrent,
		NextSwitchTime: pool.NextSwitchTime,
		Version:        pool.Version,
	}
}

func toAccountResponse(view application.AccountView) accountResponse {
	account := view.Account
	resp := accountResponse{
		ID:          string(account.ID),
		Name:        account.Name,
		Weight:      account.Weight,
		Status:      string(account.Status),
		Serving:     account.Serving(),
		DisabledAt:  account.DisabledAt,
		Generations: account.Generations,
	}
	if view.Health != nil {
		active := view.Health.ActiveCount
		resp.ActiveCount = &active
		resp.CooldownUntil = view.Health.CooldownUntil
	}
	return resp
}

func (h *Handler) ListPools(w http.ResponseWriter, r *http.Request) {
	pools, err := h.deps.Pools.ListPools(r.Context())
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	resp := make([]poolResponse, 0, len(pools))
	for _, pool := range pools {
		resp = append(resp, toPoolResponse(pool))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) DescribePool(w http.ResponseWriter, r *http.Request) {
	status, err := h.deps.Pools.Describe(r.Context(), domain.PoolID(mux.Vars(r)["pool"]))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	resp := poolStatusResponse{poolResponse: toPoolResponse(status.Pool), Accounts: make([]accountResponse, 0, len(status.Accounts))}
	for _, view := range status.Accounts {
		resp.Accounts = append(resp.Accounts, toAccountResponse(view))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) AcquireAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.deps.Acquirer.Acquire(r.Context(), domain.PoolID(mux.Vars(r)["pool"]))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toAccountResponse(application.AccountView{Account: account}))
}
