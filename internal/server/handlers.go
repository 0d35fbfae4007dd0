package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/alexbevz/ai-istok-sem-pro/internal/auth"
	"github.com/alexbevz/ai-istok-sem-pro/internal/repository"
	"github.com/alexbevz/ai-istok-sem-pro/internal/service"
	"github.com/alexbevz/ai-istok-sem-pro/internal/vectorstore"
)

// maxUploadBytes caps file ingestion uploads
const maxUploadBytes = 32 << 20

type handlers struct {
	logger          *slog.Logger
	accounts        *service.AccountService
	collections     *service.CollectionService
	items           *service.ItemService
	proximity       *service.ProximityService
	defaultTopK     int
	defaultMinScore float32
}

// searchParams resolves omitted count/min_score to the configured defaults
func (h *handlers) searchParams(count int, minScore *float32) (int, float32) {
	if count <= 0 {
		count = h.defaultTopK
	}
	if minScore == nil {
		return count, h.defaultMinScore
	}
	return count, *minScore
}

// caller extracts the authenticated caller placed by the auth middleware
func caller(r *http.Request) (*auth.Caller, error) {
	c, ok := auth.CallerFromContext(r.Context())
	if !ok {
		return nil, errors.New("caller not found in context")
	}
	return c, nil
}

// collectionID parses the collection id URL parameter
func collectionID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "collectionID"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid collection id: %w", err)
	}
	return id, nil
}

// itemRef parses the item reference URL parameter. A UUID resolves by row
// id, anything else by external id.
func itemRef(r *http.Request) service.ItemRef {
	raw := chi.URLParam(r, "itemRef")
	if id, err := uuid.Parse(raw); err == nil {
		return service.ItemRef{ID: id}
	}
	return service.ItemRef{ExternalID: raw}
}

// pageParams parses offset/limit query parameters
func pageParams(r *http.Request) repository.Page {
	page := repository.DefaultPage()
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil && offset >= 0 {
			page.Offset = offset
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			page.Limit = limit
		}
	}
	return page
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// DTOs

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(user *repository.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
}

type collectionResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Size      *int      `json:"size,omitempty"`
}

func toCollectionResponse(collection *repository.Collection) collectionResponse {
	return collectionResponse{
		ID:        collection.ID,
		Name:      collection.Name,
		CreatedAt: collection.CreatedAt,
	}
}

type itemResponse struct {
	ID         uuid.UUID `json:"id"`
	Content    string    `json:"content"`
	ExternalID string    `json:"external_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toItemResponse(item *repository.Item) itemResponse {
	return itemResponse{
		ID:         item.ID,
		Content:    item.Content,
		ExternalID: item.ExternalID,
		CreatedAt:  item.CreatedAt,
	}
}

type searchResultResponse struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	ExternalID string  `json:"external_id,omitempty"`
	Score      float32 `json:"score"`
}

func toSearchResponse(results []vectorstore.SearchResult) []searchResultResponse {
	out := make([]searchResultResponse, len(results))
	for i, result := range results {
		out[i] = searchResultResponse{
			ID:         result.ID,
			Content:    result.Content,
			ExternalID: result.ExternalID,
			Score:      result.Score,
		}
	}
	return out
}

type proximityMatchResponse struct {
	Content    string  `json:"content"`
	ExternalID string  `json:"external_id,omitempty"`
	Score      float32 `json:"score"`
}

type pageResponse struct {
	Items  []itemResponse `json:"items"`
	Offset int            `json:"offset"`
	Limit  int            `json:"limit"`
	Total  int            `json:"total"`
}

// Auth handlers

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password are required"})
		return
	}

	user, err := h.accounts.Register(r.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	pair, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	pair, err := h.accounts.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid refresh token"})
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// Collection handlers

func (h *handlers) createCollection(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	collection, err := h.collections.Create(r.Context(), c.UserID, req.Name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCollectionResponse(collection))
}

func (h *handlers) listCollections(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	collections, err := h.collections.List(r.Context(), c.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]collectionResponse, len(collections))
	for i, collection := range collections {
		out[i] = toCollectionResponse(collection)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) getCollection(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := collectionID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	collection, size, err := h.collections.Get(r.Context(), c.UserID, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	resp := toCollectionResponse(collection)
	resp.Size = &size
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) renameCollection(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := collectionID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	collection, err := h.collections.Rename(r.Context(), c.UserID, id, req.Name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toCollectionResponse(collection))
}

func (h *handlers) deleteCollection(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := collectionID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	collection, err := h.collections.Delete(r.Context(), c.UserID, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toCollectionResponse(collection))
}

// Item handlers

func (h *handlers) addItem(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := collectionID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var req struct {
		Content    string `json:"content"`
		ExternalID string `json:"external_id"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "content is required"})
		return
	}

	item, err := h.items.AddOne(r.Context(), c.UserID, id, service.ItemInput{
		Content:    req.Content,
		ExternalID: req.ExternalID,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemResponse(item))
}

func (h *handlers) addItemBatch(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := collectionID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var req struct {
		Items []struct {
			Content    string `json:"content"`
			ExternalID string `json:"external_id"`
		} `json:"items"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	inputs := make([]service.ItemInput, len(req.Items))
	for i, item := range req.Items {
		if item.Content == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("item %d: content is required", i)})
			return
		}
		inputs[i] = service.ItemInput{Content: item.Content, ExternalID: item.ExternalID}
	}

	items, err := h.items.AddBatch(r.Context(), c.UserID, id, inputs)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]itemResponse, len(items))
	for i, item := range items {
		out[i] = toItemResponse(item)
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *handlers) addItemsFromFile(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := collectionID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file field is required"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read file"})
		return
	}

	separator := r.FormValue("separator")

	created, err := h.items.AddFromFile(r.Context(), c.UserID, id, header.Filename, content, separator)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"total": created})
}

func (h *handlers) listItems(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := collectionID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	page := pageParams(r)
	items, total, err := h.items.List(r.Context(), c.UserID, id, page)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]itemResponse, len(items))
	for i, item := range items {
		out[i] = toItemResponse(item)
	}
	writeJSON(w, http.StatusOK, pageResponse{
		Items:  out,
		Offset: page.Offset,
		Limit:  page.Limit,
		Total:  total,
	})
}

func (h *handlers) getItem(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := collectionID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	item, err := h.items.Get(r.Context(), c.UserID, id, itemRef(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

func (h *handlers) editItem(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := collectionID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var req struct {
		Content    string `json:"content"`
		ExternalID string `json:"external_id"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "content is required"})
		return
	}

	item, err := h.items.Edit(r.Context(), c.UserID, id, itemRef(r), service.ItemInput{
		Content:    req.Content,
		ExternalID: req.ExternalID,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

func (h *handlers) deleteItem(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := collectionID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	item, err := h.items.Delete(r.Context(), c.UserID, id, itemRef(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

// Proximity handlers

func (h *handlers) compare(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query      string `json:"query"`
		Candidates []struct {
			Content    string `json:"content"`
			ExternalID string `json:"external_id"`
		} `json:"candidates"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	candidates := make([]service.CompareCandidate, len(req.Candidates))
	for i, candidate := range req.Candidates {
		if candidate.Content == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("candidate %d: content is required", i)})
			return
		}
		candidates[i] = service.CompareCandidate{
			Content:    candidate.Content,
			ExternalID: candidate.ExternalID,
		}
	}

	matches, err := h.proximity.Compare(r.Context(), req.Query, candidates)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]proximityMatchResponse, len(matches))
	for i, match := range matches {
		out[i] = proximityMatchResponse{
			Content:    match.Content,
			ExternalID: match.ExternalID,
			Score:      match.Score,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := collectionID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var req struct {
		Query    string   `json:"query"`
		Count    int      `json:"count"`
		MinScore *float32 `json:"min_score"`
		Save     bool     `json:"save"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}
	count, minScore := h.searchParams(req.Count, req.MinScore)

	results, err := h.proximity.Search(r.Context(), c.UserID, id, service.SearchRequest{
		Query:    req.Query,
		Count:    count,
		MinScore: minScore,
		Save:     req.Save,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toSearchResponse(results))
}

func (h *handlers) searchByItem(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := collectionID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var req struct {
		ItemID     string   `json:"item_id"`
		ExternalID string   `json:"external_id"`
		Count      int      `json:"count"`
		MinScore   *float32 `json:"min_score"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	count, minScore := h.searchParams(req.Count, req.MinScore)

	var results []vectorstore.SearchResult
	switch {
	case req.ItemID != "":
		itemID, err := uuid.Parse(req.ItemID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item_id"})
			return
		}
		results, err = h.proximity.SearchByItemID(r.Context(), c.UserID, id, itemID, count, minScore)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
	case req.ExternalID != "":
		results, err = h.proximity.SearchByExternalID(r.Context(), c.UserID, id, req.ExternalID, count, minScore)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "item_id or external_id is required"})
		return
	}

	writeJSON(w, http.StatusOK, toSearchResponse(results))
}
