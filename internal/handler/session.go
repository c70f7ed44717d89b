package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"storefront-sync/internal/catalog"
	"storefront-sync/internal/collection"
	"storefront-sync/internal/gateway"
	"storefront-sync/internal/model"
	"storefront-sync/internal/reconcile"
	"storefront-sync/internal/session"
	"storefront-sync/internal/view"
)

// confirmTimeout bounds how long ?wait=true holds a request open.
const confirmTimeout = 30 * time.Second

// collectionResponse is the body of every collection read and mutation.
type collectionResponse struct {
	Kind     model.CollectionKind `json:"kind"`
	Items    model.Collection     `json:"items"`
	Summary  view.Summary         `json:"summary"`
	Mutation *mutationStatus      `json:"mutation,omitempty"`
	Error    *errorBody           `json:"error,omitempty"`
}

type mutationStatus struct {
	Op     collection.Op `json:"op"`
	ItemID string        `json:"itemId,omitempty"`
	State  string        `json:"state"`
}

type loginRequest struct {
	Token string `json:"token"`
}

type loginResponse struct {
	Session              session.Info        `json:"session"`
	AlreadyAuthenticated bool                `json:"alreadyAuthenticated,omitempty"`
	Merged               []reconcileSummary `json:"merged,omitempty"`
}

// loginErrorResponse adds the kinds a failed login already merged, whose
// guest items now live on the server only.
type loginErrorResponse struct {
	Error  errorBody              `json:"error"`
	Merged []model.CollectionKind `json:"merged,omitempty"`
}

type reconcileSummary struct {
	Kind      model.CollectionKind `json:"kind"`
	Attempted int                  `json:"attempted"`
	Added     int                  `json:"added"`
	Failed    []string             `json:"failed,omitempty"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type listingResponse struct {
	*catalog.Result
	Stale bool `json:"stale,omitempty"`
}

// requireSession returns the session attached by session.Middleware.
func requireSession(r *http.Request) (*session.Request, error) {
	sr := session.FromContext(r.Context())
	if sr == nil || sr.Session == nil {
		return nil, model.NewValidationError(session.HeaderName, "session required")
	}
	return sr, nil
}

// controllerFor resolves the {kind} path value against the request session.
func controllerFor(r *http.Request) (*collection.Controller, error) {
	sr, err := requireSession(r)
	if err != nil {
		return nil, err
	}
	kind, err := model.ParseKind(r.PathValue("kind"))
	if err != nil {
		return nil, model.NewNotFoundError(fmt.Sprintf("collection %q", r.PathValue("kind")))
	}
	return sr.Session.Controller(kind), nil
}

// handleGetSession returns the session mode and collection summaries.
// GET /session
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sr, err := requireSession(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sr.Session.Info())
}

// handleLogin signs the session in and merges its guest collections.
// POST /session/login {"token": "..."}
// The header token is used when the body carries none.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	sr, err := requireSession(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req loginRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			h.writeError(w, err)
			return
		}
	}
	if req.Token == "" {
		req.Token = sr.Token
	}

	result, err := sr.Session.Login(r.Context(), req.Token)
	if err != nil {
		var loginErr *session.LoginError
		if !errors.As(err, &loginErr) || len(loginErr.Merged) == 0 {
			h.writeError(w, err)
			return
		}
		apiErr := h.asAPIError(err)
		h.writeJSON(w, apiErr.StatusCode, loginErrorResponse{
			Error:  newErrorBody(apiErr),
			Merged: loginErr.Merged,
		})
		return
	}

	resp := loginResponse{
		Session:              sr.Session.Info(),
		AlreadyAuthenticated: result.AlreadyAuthenticated,
	}
	for _, report := range result.Reports {
		resp.Merged = append(resp.Merged, summarizeReport(report))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func summarizeReport(report *reconcile.Report) reconcileSummary {
	s := reconcileSummary{
		Kind:      report.Kind,
		Attempted: report.Attempted,
		Added:     report.Added,
	}
	for _, f := range report.Failed {
		s.Failed = append(s.Failed, f.ID)
	}
	return s
}

// handleDeleteSession ends the session and erases its guest collections.
// DELETE /session
func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sr, err := requireSession(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.registry.Remove(r.Context(), sr.Session.ID()); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLogout returns the session to guest mode.
// POST /session/logout
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sr, err := requireSession(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	sr.Session.Logout()
	h.writeJSON(w, http.StatusOK, sr.Session.Info())
}

// handleGetCollection returns the items and totals of one collection.
// GET /session/{kind}
func (h *Handler) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	ctl, err := controllerFor(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newCollectionResponse(ctl, nil))
}

// handleAddItem adds an item optimistically.
// POST /session/{kind}/items
func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	ctl, err := controllerFor(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var item model.CollectionItem
	if err := decodeJSON(r, &item); err != nil {
		h.writeError(w, err)
		return
	}

	m, err := ctl.Add(r.Context(), item)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respondMutation(w, r, ctl, m)
}

// handleRemoveItem removes an item optimistically.
// DELETE /session/{kind}/items/{id}
func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	ctl, err := controllerFor(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	m, err := ctl.Remove(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respondMutation(w, r, ctl, m)
}

// handleSetQuantity changes a cart line quantity. Zero removes the line.
// PUT /session/{kind}/items/{id} {"quantity": 2}
func (h *Handler) handleSetQuantity(w http.ResponseWriter, r *http.Request) {
	ctl, err := controllerFor(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if ctl.Kind() != model.KindCart {
		h.writeError(w, model.NewValidationError("kind", "quantity applies to the cart only"))
		return
	}

	var req quantityRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	m, err := ctl.SetQuantity(r.Context(), r.PathValue("id"), req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respondMutation(w, r, ctl, m)
}

// handleClearCollection empties a collection.
// DELETE /session/{kind}
func (h *Handler) handleClearCollection(w http.ResponseWriter, r *http.Request) {
	ctl, err := controllerFor(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respondMutation(w, r, ctl, ctl.Clear(r.Context()))
}

// respondMutation answers 202 with the optimistic collection. With
// ?wait=true it waits for the server to settle the change first and
// answers 409 with the reverted collection if it was rolled back.
func (h *Handler) respondMutation(w http.ResponseWriter, r *http.Request, ctl *collection.Controller, m *collection.Mutation) {
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		h.writeJSON(w, http.StatusAccepted, newCollectionResponse(ctl, m))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), confirmTimeout)
	defer cancel()

	err := m.Wait(ctx)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, newCollectionResponse(ctl, m))
	case errors.Is(err, model.ErrRolledBack):
		resp := newCollectionResponse(ctl, m)
		body := newErrorBody(h.asAPIError(err))
		resp.Error = &body
		h.writeJSON(w, http.StatusConflict, resp)
	default:
		h.writeError(w, model.NewTimeoutError("confirmation"))
	}
}

func newCollectionResponse(ctl *collection.Controller, m *collection.Mutation) collectionResponse {
	items := ctl.Items()
	if items == nil {
		items = model.Collection{}
	}
	resp := collectionResponse{
		Kind:    ctl.Kind(),
		Items:   items,
		Summary: view.Totals(items),
	}
	if m != nil {
		resp.Mutation = &mutationStatus{Op: m.Op, ItemID: m.ItemID, State: m.State().String()}
	}
	return resp
}

// handleSubmitListing resolves a query against the session listing.
// GET /session/listing?brand=...
// A response superseded by a newer query is marked stale.
func (h *Handler) handleSubmitListing(w http.ResponseWriter, r *http.Request) {
	sr, err := requireSession(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	q, err := gateway.DecodeQuery(r.URL.Query())
	if err != nil {
		h.writeError(w, err)
		return
	}

	res, applied := sr.Session.Listing().Submit(r.Context(), q)
	h.writeJSON(w, http.StatusOK, listingResponse{Result: res, Stale: !applied})
}

// handleCurrentListing returns the last published listing.
// GET /session/listing/current
func (h *Handler) handleCurrentListing(w http.ResponseWriter, r *http.Request) {
	sr, err := requireSession(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	res := sr.Session.Listing().Current()
	if res == nil {
		h.writeError(w, model.NewNotFoundError("listing"))
		return
	}
	h.writeJSON(w, http.StatusOK, listingResponse{Result: res})
}
