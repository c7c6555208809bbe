package server

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/snake-soft/pg-search/pkg/filter"
	"github.com/snake-soft/pg-search/pkg/search"
	"github.com/snake-soft/pg-search/pkg/sorting"
	"github.com/snake-soft/pg-search/pkg/types"
)

var (
	noSearches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pgsearch_searches_total",
		Help: "The total number of processed searches",
	})
	noFacetRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pgsearch_facets_total",
		Help: "The total number of processed facet requests",
	})
	noCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pgsearch_cache_hits_total",
		Help: "The total number of search responses served from cache",
	})
)

// ItemLoader renders result ids into response items, the surrounding
// shop decides what a product looks like on the wire.
type ItemLoader interface {
	Load(ids []types.ProductId) []any
}

// SearchTracker receives executed searches, fire and forget.
type SearchTracker interface {
	TrackSearch(v *types.Viewer, query string, results int, page int, r *http.Request)
}

// WebServer serves the search and facet API.
type WebServer struct {
	Composer      *search.Composer
	Sessions      *SessionManager
	Cache         *Cache
	Pricer        types.Pricer
	Items         ItemLoader
	Tracking      SearchTracker
	ListenAddress string
	CacheTTL      time.Duration
}

type SearchResponse struct {
	Items      []any                `json:"items"`
	Facets     []filter.GroupResult `json:"facets"`
	Sort       string               `json:"sort"`
	SorterOpts []sorting.SortOption `json:"sortOptions"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"pageSize"`
	TotalHits  int                  `json:"totalHits"`
	Params     string               `json:"params"`
	Categories []types.CategoryId   `json:"categories,omitempty"`
}

func (ws *WebServer) cacheKey(kind string, v *types.Viewer, r *http.Request) string {
	partner := uint(0)
	if v.Partner != nil {
		partner = v.Partner.Id
	}
	return fmt.Sprintf("%s:%d:%d:%s", kind, partner, v.Id, r.URL.RawQuery)
}

func (ws *WebServer) runSearch(v *types.Viewer, sr *types.SearchRequest) (*SearchResponse, error) {
	result, err := ws.Composer.Search(v, sr, ws.Pricer)
	if err != nil {
		return nil, err
	}
	ids := result.Collection.Ids()
	totalHits := len(ids)

	page := sr.Page
	if page < 0 {
		page = 0
	}
	pageSize := sr.PageSize
	if pageSize <= 0 {
		pageSize = 40
	}
	start := page * pageSize
	if start > totalHits {
		start = totalHits
	}
	end := start + pageSize
	if end > totalHits {
		end = totalHits
	}

	items := []any{}
	if ws.Items != nil {
		items = ws.Items.Load(ids[start:end])
	}
	return &SearchResponse{
		Items:      items,
		Facets:     result.Groups,
		Sort:       result.Sort.Code(),
		SorterOpts: sorting.Options(v, ws.Pricer),
		Page:       page,
		PageSize:   pageSize,
		TotalHits:  totalHits,
		Params:     result.Params(),
		Categories: result.Categories,
	}, nil
}

func (ws *WebServer) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		respondToOptions(w, r)
		return
	}
	noSearches.Inc()
	v := ws.Sessions.ViewerFromRequest(r)
	sr, err := types.GetQueryFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var data SearchResponse
	cacheable := ws.Cache != nil && !v.Authenticated
	cached := false
	if cacheable {
		if err := ws.Cache.Get(ws.cacheKey("search", v, r), &data); err == nil {
			noCacheHits.Inc()
			cached = true
		}
	}
	if !cached {
		resp, err := ws.runSearch(v, sr)
		if err != nil {
			log.Printf("search failed: %v", err)
			http.Error(w, "search failed", http.StatusInternalServerError)
			return
		}
		data = *resp
		// Failed searches never reach the cache, only real results do.
		if cacheable {
			if err := ws.Cache.Set(ws.cacheKey("search", v, r), data, ws.cacheTTL()); err != nil {
				log.Printf("cache store failed: %v", err)
			}
		}
	}

	if ws.Tracking != nil {
		go ws.Tracking.TrackSearch(v, sr.Query, data.TotalHits, sr.Page, r)
	}

	defaultHeaders(w, r, "120")
	w.WriteHeader(http.StatusOK)
	if err := sonic.ConfigDefault.NewEncoder(w).Encode(data); err != nil {
		log.Printf("response encode failed: %v", err)
	}
}

func (ws *WebServer) HandleFacets(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		respondToOptions(w, r)
		return
	}
	noFacetRequests.Inc()
	v := ws.Sessions.ViewerFromRequest(r)
	sr, err := types.GetQueryFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	compute := func() ([]filter.GroupResult, error) {
		result, err := ws.Composer.Search(v, sr, ws.Pricer)
		if err != nil {
			return nil, err
		}
		return result.Groups, nil
	}
	var groups []filter.GroupResult
	if !v.Authenticated {
		helper := NewCacheHelper[[]filter.GroupResult](ws.Cache)
		if err := helper.Handle(ws.cacheKey("facets", v, r), &groups, compute, ws.cacheTTL()); err != nil {
			log.Printf("facet resolution failed: %v", err)
			http.Error(w, "facet resolution failed", http.StatusInternalServerError)
			return
		}
	} else {
		groups, err = compute()
		if err != nil {
			log.Printf("facet resolution failed: %v", err)
			http.Error(w, "facet resolution failed", http.StatusInternalServerError)
			return
		}
	}

	defaultHeaders(w, r, "120")
	w.WriteHeader(http.StatusOK)
	if err := sonic.ConfigDefault.NewEncoder(w).Encode(groups); err != nil {
		log.Printf("response encode failed: %v", err)
	}
}

func (ws *WebServer) HandleSortOptions(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		respondToOptions(w, r)
		return
	}
	v := ws.Sessions.ViewerFromRequest(r)
	publicHeaders(w, r, "600")
	w.WriteHeader(http.StatusOK)
	if err := sonic.ConfigDefault.NewEncoder(w).Encode(sorting.Options(v, ws.Pricer)); err != nil {
		log.Printf("response encode failed: %v", err)
	}
}

func (ws *WebServer) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ws.Sessions.ClearCookie(w)
	w.WriteHeader(http.StatusOK)
}

func (ws *WebServer) cacheTTL() time.Duration {
	if ws.CacheTTL > 0 {
		return ws.CacheTTL
	}
	return 2 * time.Minute
}

// Handler wires the API routes. Every response carries a request id so
// log lines can be matched to client reports.
func (ws *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/search", ws.HandleSearch)
	mux.HandleFunc("/api/facets", ws.HandleFacets)
	mux.HandleFunc("/api/sort-options", ws.HandleSortOptions)
	mux.HandleFunc("/api/logout", ws.HandleLogout)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", uuid.New().String())
		mux.ServeHTTP(w, r)
	})
}

// Serve blocks until a termination signal, then runs the hooks and drains
// open connections.
func (ws *WebServer) Serve(hooks ...ShutdownHook) {
	cfg := LoadTimeoutConfig(DefaultTimeouts())
	srv := &http.Server{Addr: ws.ListenAddress, Handler: ws.Handler()}
	RunWithShutdown(srv, "search api", cfg, hooks...)
}
