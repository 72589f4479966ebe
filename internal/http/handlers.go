package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fusionguard/recommender/internal/logging"
	"github.com/fusionguard/recommender/internal/recommend"
	"github.com/fusionguard/recommender/pkg/catalog"
	"github.com/fusionguard/recommender/pkg/storage"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 1 << 16
)

// Recommender is satisfied by *recommend.Holder.
type Recommender interface {
	Infer(req recommend.Request) recommend.Result
	Engine() *recommend.Engine
	Reload(ctx context.Context) error
}

// ResultStore is satisfied by *internal/storage.Storage.
type ResultStore interface {
	StoreResult(ctx context.Context, requestID string, req recommend.Request, res recommend.Result) error
	History(ctx context.Context, itemID string, limit int) ([]storage.RecommendationRecord, error)
}

type API struct {
	recommender Recommender
	store       ResultStore
	validate    *validator.Validate
	log         zerolog.Logger

	rateRequests int
	rateWindow   time.Duration
}

func New(recommender Recommender, store ResultStore) *API {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &API{
		recommender: recommender,
		store:       store,
		validate:    validate,
		log:         logging.With("http"),
	}
}

// WithRateLimit caps inference requests per client IP. A non-positive
// request count disables the limit.
func (a *API) WithRateLimit(requests int, window time.Duration) *API {
	a.rateRequests = requests
	a.rateWindow = window
	return a
}

func (a *API) Register(r chi.Router) {
	r.Route("/recommendations", func(r chi.Router) {
		if a.rateRequests > 0 {
			r.With(httprate.LimitByIP(a.rateRequests, a.rateWindow)).Post("/", a.recommend)
		} else {
			r.Post("/", a.recommend)
		}
		r.Get("/log", a.recommendationLog)
	})
	r.Get("/products", a.products)
	r.Get("/products/{id}", a.product)
	r.Get("/knowledge", a.knowledgeKeys)
	r.Get("/knowledge/{key}", a.knowledge)
	r.Post("/admin/reload", a.reload)
}

type recommendRequest struct {
	ItemID           string   `json:"item_id" validate:"required,max=64"`
	CartValue        float64  `json:"cart_value"`
	LastPurchaseDays *float64 `json:"last_purchase_days"`
}

type recommendResponse struct {
	RequestID  string                     `json:"request_id"`
	ItemID     string                     `json:"item_id"`
	Messages   []string                   `json:"messages"`
	Products   []recommend.Recommendation `json:"products"`
	RulesFired []recommend.RuleID         `json:"rules_fired"`
	Lines      []string                   `json:"lines"`
}

func (a *API) recommend(w http.ResponseWriter, r *http.Request) {
	var body recommendRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	body.ItemID = recommend.NormalizeItemID(body.ItemID)
	if err := a.validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	req := recommend.Request{CurrentItemID: body.ItemID, CartValue: body.CartValue}
	if body.LastPurchaseDays != nil {
		req.History = &recommend.History{LastPurchaseDays: *body.LastPurchaseDays}
	}

	requestID := requestIDFrom(r)
	res := a.recommender.Infer(req)

	if a.store != nil {
		if err := a.store.StoreResult(r.Context(), requestID, req, res); err != nil {
			a.log.Warn().Err(err).Str("request_id", requestID).Msg("store recommendation")
		}
	}

	w.Header().Set(requestIDHeader, requestID)
	writeJSON(w, http.StatusOK, newRecommendResponse(requestID, req.CurrentItemID, res))
}

func newRecommendResponse(requestID, itemID string, res recommend.Result) recommendResponse {
	resp := recommendResponse{
		RequestID:  requestID,
		ItemID:     itemID,
		Messages:   res.Messages,
		Products:   res.Products,
		RulesFired: res.Fired,
		Lines:      res.Lines(),
	}
	if resp.Messages == nil {
		resp.Messages = []string{}
	}
	if resp.Products == nil {
		resp.Products = []recommend.Recommendation{}
	}
	if resp.RulesFired == nil {
		resp.RulesFired = []recommend.RuleID{}
	}
	return resp
}

func (a *API) recommendationLog(w http.ResponseWriter, r *http.Request) {
	itemID := recommend.NormalizeItemID(r.URL.Query().Get("item_id"))
	if itemID == "" {
		writeError(w, http.StatusBadRequest, "item_id parameter required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = v
	}

	if a.store == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"records": []interface{}{}})
		return
	}

	records, err := a.store.History(r.Context(), itemID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list recommendations: %v", err))
		return
	}

	response := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		item := map[string]interface{}{
			"request_id":  rec.RequestID,
			"item_id":     rec.ItemID,
			"cart_value":  rec.CartValue,
			"rules_fired": rec.RulesFired,
			"messages":    rec.Messages,
			"product_ids": rec.ProductIDs,
			"created_at":  rec.CreatedAt,
		}
		if rec.LastPurchaseDays != nil {
			item["last_purchase_days"] = *rec.LastPurchaseDays
		}
		response = append(response, item)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"records": response})
}

func (a *API) products(w http.ResponseWriter, r *http.Request) {
	products := a.catalog().Products()
	if products == nil {
		products = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"products": products})
}

func (a *API) product(w http.ResponseWriter, r *http.Request) {
	id := recommend.NormalizeItemID(chi.URLParam(r, "id"))
	p, ok := a.catalog().Resolve(id)
	if !ok {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) knowledgeKeys(w http.ResponseWriter, r *http.Request) {
	keys := a.knowledgeBase().Keys()
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"keys": keys})
}

func (a *API) knowledge(w http.ResponseWriter, r *http.Request) {
	// Bucket names match exactly; product keys are matched like item ids.
	key := chi.URLParam(r, "key")
	ids, ok := a.knowledgeBase().Entries(key)
	if !ok {
		key = recommend.NormalizeItemID(key)
		ids, ok = a.knowledgeBase().Entries(key)
	}
	if !ok {
		writeError(w, http.StatusNotFound, "knowledge entry not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"key": key, "product_ids": ids})
}

func (a *API) reload(w http.ResponseWriter, r *http.Request) {
	if err := a.recommender.Reload(r.Context()); err != nil {
		a.log.Error().Err(err).Msg("reload knowledge")
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("reload failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "reloaded",
		"products": a.catalog().Len(),
	})
}

func (a *API) catalog() *catalog.Catalog {
	if e := a.recommender.Engine(); e != nil {
		return e.Catalog()
	}
	return nil
}

func (a *API) knowledgeBase() *catalog.KnowledgeBase {
	if e := a.recommender.Engine(); e != nil {
		return e.KnowledgeBase()
	}
	return nil
}

func requestIDFrom(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(requestIDHeader)); id != "" {
		return id
	}
	return uuid.NewString()
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("field %s failed %s validation", fe.Field(), fe.Tag())
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
